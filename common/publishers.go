package common

import (
	"context"
	"time"
)

type Publishers struct {
	publishers []Publisher
}

func (ps *Publishers) Publish(samples []Sample) {
	for _, p := range ps.publishers {
		p.Publish(samples)
	}
}

func (ps *Publishers) Stop() {
	for _, p := range ps.publishers {
		p.Stop()
	}
}

func (ps *Publishers) Register(p Publisher) {
	if ps != nil && p != nil {
		ps.publishers = append(ps.publishers, p)
	}
}

func (ps *Publishers) Len() int {
	return len(ps.publishers)
}

// Run publishes samples taken from source every interval until ctx is done.
// A final publish happens on the way out so push backends see the last values.
func (ps *Publishers) Run(ctx context.Context, source Source, interval time.Duration) {

	if len(ps.publishers) == 0 || interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ps.Publish(source.Samples())
			return
		case <-ticker.C:
			ps.Publish(source.Samples())
		}
	}
}

func NewPublishers() *Publishers {
	return &Publishers{}
}
