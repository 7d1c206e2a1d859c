package parse

import "fmt"

func formatGbit(value float64) string {
	return fmt.Sprintf("%.2f Gbit/sec", value)
}

func formatMicros(value float64) string {
	return fmt.Sprintf("%.2f us", value)
}

func formatBandwidth(value float64, unit string) string {
	return fmt.Sprintf("%.2f %s", value, unit)
}
