package dataset

// Resolve 按列定义把一条记录转换成一行字符串
func Resolve(record any, spec Spec, n *Normalizer) ([]string, error) {
	if n == nil {
		n = DefaultNormalizer
	}
	row := make([]string, len(spec.columns))
	for i := range spec.columns {
		v, err := spec.columns[i].value(record)
		if err != nil {
			return nil, err
		}
		row[i] = n.Normalize(v)
	}
	return row, nil
}

func (c Column) value(record any) (any, error) {
	switch src := c.Source.(type) {
	case Computed:
		return src(record), nil
	case Stored:
		if c.Display != nil {
			return c.Display(record)
		}
		return Lookup(record, string(src))
	}
	return nil, ErrConfig.Wrap(ErrNilSource)
}
