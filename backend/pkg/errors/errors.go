package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：条件更新未命中任何记录（记录已被其他操作修改或前置条件不再成立）
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")
