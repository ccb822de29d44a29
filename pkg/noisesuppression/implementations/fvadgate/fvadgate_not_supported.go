//go:build !fvad
// +build !fvad

package fvadgate

import (
	"fmt"

	"github.com/xaionaro-go/silentstream/pkg/noisesuppression"
)

type FVADGate = noisesuppression.Dummy

func New() (*FVADGate, error) {
	return nil, fmt.Errorf("built without tag 'fvad'")
}
