package mocks

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DoneToken is an already completed token carrying err.
type DoneToken struct {
	Err error
}

var _ mqtt.Token = (*DoneToken)(nil)

// NewDoneToken returns a completed token.
func NewDoneToken(err error) *DoneToken {
	return &DoneToken{Err: err}
}

func (t *DoneToken) Wait() bool                     { return true }
func (t *DoneToken) WaitTimeout(time.Duration) bool { return true }
func (t *DoneToken) Completed() bool                { return true }
func (t *DoneToken) Error() error                   { return t.Err }

func (t *DoneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
