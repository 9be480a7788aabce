package enums

import "fmt"

// StockDirection marks a stock ledger entry as an inflow or an outflow.
type StockDirection string

const (
	StockIn  StockDirection = "in"
	StockOut StockDirection = "out"
)

func (d StockDirection) IsValid() bool {
	return d == StockIn || d == StockOut
}

// Sign returns +1 for inflows and -1 for outflows.
func (d StockDirection) Sign() int {
	if d == StockOut {
		return -1
	}
	return 1
}

func ParseStockDirection(value string) (StockDirection, error) {
	switch StockDirection(value) {
	case StockIn:
		return StockIn, nil
	case StockOut:
		return StockOut, nil
	}
	return "", fmt.Errorf("invalid stock direction %q", value)
}
