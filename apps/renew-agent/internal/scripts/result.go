package scripts

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidResult はスクリプト結果が期待する型でない場合のエラー
var ErrInvalidResult = errors.New("invalid script result")

// ParseBool はスクリプト結果を真偽値として解釈する。
func ParseBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("%w: %q", ErrInvalidResult, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%w: want bool, got %T", ErrInvalidResult, v)
	}
}

// ParseCount はスクリプト結果を0以上の整数として解釈する。
// goja は int64、CDP経由の結果は float64 で返るため両方を受け付ける。
func ParseCount(v any) (int, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("%w: non-integer %v", ErrInvalidResult, x)
		}
		n = int64(x)
	case json.Number:
		parsed, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidResult, err)
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidResult, x)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: want number, got %T", ErrInvalidResult, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrInvalidResult, n)
	}
	return int(n), nil
}
