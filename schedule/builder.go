package schedule

import (
	"context"

	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/filter"
	"gorm.io/gorm"
)

// ModelBuilder 从注册表查找模型，按任务的过滤条件导出所有列
func ModelBuilder(db *gorm.DB, registry *dataset.Registry, opts ...dataset.NormalizerOption) Builder {
	n := dataset.NewNormalizer(opts...)
	return func(ctx context.Context, job Job) (*dataset.Table, error) {
		m, ok := registry.Get(job.Model)
		if !ok {
			return nil, ErrSchedule.New("%s: model %s is not registered", job.Name, job.Model)
		}
		filters := make([]filter.Filter, 0, len(job.Filters))
		for k, v := range job.Filters {
			filters = append(filters, filter.Parse(k, v))
		}
		tx, err := filter.Apply(m.Query(db.WithContext(ctx)), m, filters...)
		if err != nil {
			return nil, err
		}
		return dataset.Simple(ctx, dataset.Query(tx), nil,
			dataset.WithNormalizer(n),
			dataset.WithTitle(job.Name))
	}
}
