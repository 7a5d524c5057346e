package report

import (
	"errors"
	"fmt"
)

// ErrZeroDenominator is returned when a share is requested of a zero total.
var ErrZeroDenominator = errors.New("denominator cannot be 0")

// PercentTenths returns 100*part/whole in tenths of a percent, rounded half up.
// The computation is exact integer arithmetic, so 1/16 (6.25%) is always 63
// and never subject to binary floating point representation.
func PercentTenths(part, whole int) (int, error) {
	if whole == 0 {
		return 0, ErrZeroDenominator
	}
	if part < 0 || whole < 0 {
		return 0, fmt.Errorf("negative share %d/%d", part, whole)
	}
	p, w := int64(part), int64(whole)
	return int((2000*p + w) / (2 * w)), nil
}

// Percentage formats part's share of whole with one decimal and a trailing
// percent sign, e.g. "71.4%".
func Percentage(part, whole int) (string, error) {
	t, err := PercentTenths(part, whole)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d%%", t/10, t%10), nil
}
