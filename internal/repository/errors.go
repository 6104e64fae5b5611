package repository

import "errors"

var (
	ErrNotFound         = errors.New("задача не найдена")
	ErrStoreUnavailable = errors.New("хранилище недоступно")
)
