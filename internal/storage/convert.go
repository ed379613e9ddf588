package storage

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// NormalizeValue converts driver-specific scalar types into the value set
// used by table cells: string, time.Time, int64, float64, decimal.Decimal,
// bool, []byte or nil.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
	case float32:
		return float64(x)
	case *big.Int:
		if x == nil {
			return nil
		}
		return decimal.NewFromBigInt(x, 0)
	case *big.Float:
		if x == nil {
			return nil
		}
		d, err := decimal.NewFromString(x.Text('f', -1))
		if err != nil {
			return x.String()
		}
		return d
	default:
		return v
	}
}
