package logger

import (
	"context"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
)

type nopLogger struct{}

// NewNoop returns a logger that discards every entry. Fatal does not exit.
func NewNoop() interfaces.Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...interfaces.Field) {}
func (nopLogger) Info(string, ...interfaces.Field)  {}
func (nopLogger) Warn(string, ...interfaces.Field)  {}
func (nopLogger) Error(string, ...interfaces.Field) {}
func (nopLogger) Fatal(string, ...interfaces.Field) {}

func (n nopLogger) WithContext(context.Context) interfaces.Logger { return n }

func (n nopLogger) WithFields(...interfaces.Field) interfaces.Logger { return n }
