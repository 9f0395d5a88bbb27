package domain

import (
	"errors"
	"fmt"
)

// ErrStockNotFound возвращается, если тикер не отслеживается.
var ErrStockNotFound = errors.New("тикер не найден")

// ErrParse возвращается при неожиданной форме ответа источника.
var ErrParse = errors.New("неожиданный формат ответа источника")

// ErrScoring возвращается, если вызов скоринга не удался или вернул некорректный JSON.
var ErrScoring = errors.New("скоринг не выполнен")

// ProxyNetworkError — сбой на уровне соединения или авторизации прокси.
// Только такие ошибки переводят прокси в cooldown.
type ProxyNetworkError struct {
	Proxy string
	Err   error
}

func (e *ProxyNetworkError) Error() string {
	if e.Proxy == "" {
		return fmt.Sprintf("сетевая ошибка: %v", e.Err)
	}
	return fmt.Sprintf("сетевая ошибка через прокси %s: %v", e.Proxy, e.Err)
}

func (e *ProxyNetworkError) Unwrap() error { return e.Err }

// UpstreamHTTPError — удалённый сервис вернул не-2xx; прокси при этом отработал.
type UpstreamHTTPError struct {
	Service string
	Status  int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("%s: неожиданный статус %d", e.Service, e.Status)
}
