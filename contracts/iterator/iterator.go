package iterator

type Iterator[T any] interface {
	//Next 是否有下一条数据
	Next() bool
	//Value 获取下一条数据
	Value() T
	//Err 迭代过程中产生的错误，Next 返回 false 后检查
	Err() error
}
