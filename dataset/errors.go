package dataset

import (
	"errors"

	"github.com/zeebo/errs"
)

var (
	// ErrDataset 数据集通用错误
	ErrDataset = errs.Class("dataset")
	// ErrAttribute 记录上找不到属性
	ErrAttribute = errs.Class("attribute")
	// ErrConfig 数据集定义错误
	ErrConfig = errs.Class("dataset config")
	// ErrNoObjects 定义既没有模型也没有固定数据
	ErrNoObjects = errs.Class("no objects")
)

var (
	ErrDuplicateHeader   = errors.New("duplicate header")
	ErrEmptyHeader       = errors.New("empty header")
	ErrNilSource         = errors.New("column has no source")
	ErrInvalidDimensions = errors.New("row width does not match headers")
	ErrMaximumLimit      = errors.New("export quantity exceeds maximum limit")
)
