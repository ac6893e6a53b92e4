package domain

import "errors"

// ErrNotFound — запрошенный объект (пункт плана, пользователь) не существует.
// Сообщается пользователю, а не роняет обработку.
var ErrNotFound = errors.New("не найдено")

// ErrValidation — некорректный аргумент команды. Состояние не меняется.
var ErrValidation = errors.New("некорректное значение")
