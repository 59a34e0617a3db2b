package logging

import (
	"log"
	"noisevpn/infrastructure/tunnel/session"
)

type LogLogger struct {
}

func NewLogLogger() session.Logger {
	return &LogLogger{}
}

func (l LogLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
