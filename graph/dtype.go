package graph

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// dtypeName converts a DType to the lower-case spelling used in dumps
// and in graph files.
func dtypeName(dtype dtypes.DType) string {
	switch dtype {
	case dtypes.Float16:
		return "float16"
	case dtypes.BFloat16:
		return "bfloat16"
	case dtypes.Float32:
		return "float32"
	case dtypes.Float64:
		return "float64"
	case dtypes.Int8:
		return "int8"
	case dtypes.Int16:
		return "int16"
	case dtypes.Int32:
		return "int32"
	case dtypes.Int64:
		return "int64"
	case dtypes.Uint8:
		return "uint8"
	case dtypes.Bool:
		return "bool"
	default:
		return dtype.String()
	}
}

// DTypeFromName parses the spellings produced by dumps and accepted in
// graph files.
func DTypeFromName(name string) (dtypes.DType, error) {
	switch name {
	case "float16", "fp16":
		return dtypes.Float16, nil
	case "bfloat16", "bf16":
		return dtypes.BFloat16, nil
	case "float32", "fp32":
		return dtypes.Float32, nil
	case "float64", "fp64":
		return dtypes.Float64, nil
	case "int8":
		return dtypes.Int8, nil
	case "int16":
		return dtypes.Int16, nil
	case "int32":
		return dtypes.Int32, nil
	case "int64":
		return dtypes.Int64, nil
	case "uint8":
		return dtypes.Uint8, nil
	case "bool":
		return dtypes.Bool, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
}
