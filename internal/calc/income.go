// Package calc implements the income arithmetic and formatting rules for
// the calculator flows.
package calc

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bones farms produce two bones per spawner per minute.
const bonesPerSpawnerPerMinute = 2

var printer = message.NewPrinter(language.English)

// Income returns the projected hourly income in millions for a farm.
func Income(rate, modules, multiplier float64) float64 {
	return modules * rate * multiplier
}

// FormatIncome renders an hourly income total (in millions). Totals of one
// million or more keep the M unit with two decimals; smaller totals are
// shown in thousands, rounded to an integer with grouping separators.
func FormatIncome(total float64) string {
	if total >= 1 {
		return fmt.Sprintf("$%.2fM/hour", total)
	}
	return fmt.Sprintf("$%sK/hour", FormatCount(int(total*1000)))
}

// BonesPerMinute returns the per-minute bone yield for a spawner count.
func BonesPerMinute(spawners int) int {
	return spawners * bonesPerSpawnerPerMinute
}

// BonesPerHour extrapolates a per-minute yield to an hour.
func BonesPerHour(perMinute int) int {
	return perMinute * 60
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}
