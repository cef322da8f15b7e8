// Package goroutine запускает фоновые задачи так, что паника в них не роняет процесс.
package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/tertab-backend/internal/logger"
)

// Go запускает fn в отдельной горутине; паника логируется вместе со стеком.
func Go(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer Recover(name, nil)
		fn(ctx)
	}()
}

// Recover вызывается через defer. Если была паника, пишет её в лог и передаёт
// значение в onPanic (если он задан), иначе ничего не делает.
func Recover(name string, onPanic func(err error)) {
	p := recover()
	if p == nil {
		return
	}
	logger.For("goroutine").WithFields(logrus.Fields{
		"task":  name,
		"panic": p,
		"stack": string(debug.Stack()),
	}).Error("panic recovered")
	if onPanic != nil {
		onPanic(fmt.Errorf("%s: panic: %v", name, p))
	}
}
