package service

import (
	"context"
	"errors"
	"fmt"
)

// Service is a long-running part of the client.
type Service interface {
	Run()
	Shutdown(ctx context.Context) error
}

// Group runs services in the order of addition and stops them in reverse.
type Group struct {
	list []Service
}

func (g *Group) Add(services ...Service) {
	for _, s := range services {
		if s != nil {
			g.list = append(g.list, s)
		}
	}
}

func (g *Group) Start() {
	for _, s := range g.list {
		s.Run()
	}
}

// Shutdown stops all the services even if some of them fail.
func (g *Group) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(g.list) - 1; i >= 0; i-- {
		s := g.list[i]
		if err := s.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("couldn't stop %v: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
