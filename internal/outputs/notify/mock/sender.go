package mock

import (
	"context"

	"github.com/bakkerme/dealwatch/internal/outputs/notify"
)

// Sender records every delivered message. When FailOn returns an error the
// send fails; the message still shows up in Attempts.
type Sender struct {
	Messages []notify.Message
	Attempts []notify.Message
	Err      error
	FailOn   func(message notify.Message) error
}

func (s *Sender) Send(ctx context.Context, message notify.Message) error {
	_ = ctx
	s.Attempts = append(s.Attempts, message)
	if s.Err != nil {
		return s.Err
	}
	if s.FailOn != nil {
		if err := s.FailOn(message); err != nil {
			return err
		}
	}
	s.Messages = append(s.Messages, message)
	return nil
}

// Texts returns the text of every delivered message in order.
func (s *Sender) Texts() []string {
	out := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, m.Text)
	}
	return out
}
