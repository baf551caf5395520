package app

import (
	"context"
	"io"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/actioncache" //nolint:depguard // Wired in app layer
	"go.trai.ch/rex/internal/adapters/cas"         //nolint:depguard // Wired in app layer
	"go.trai.ch/rex/internal/adapters/config"      //nolint:depguard // Wired in app layer
	rexfs "go.trai.ch/rex/internal/adapters/fs"    //nolint:depguard // Wired in app layer
	"go.trai.ch/rex/internal/adapters/logger"      //nolint:depguard // Wired in app layer
	"go.trai.ch/rex/internal/adapters/remote"      //nolint:depguard // Wired in app layer
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/rex/internal/engine/runner"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			runner.NodeID,
			cas.NodeID,
			rexfs.SnapshotterNodeID,
			logger.NodeID,
			config.NodeID,
			remote.NodeID,
			actioncache.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: app, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	stacks, err := graft.Dep[*runner.Stacks](ctx)
	if err != nil {
		return nil, err
	}
	store, err := graft.Dep[ports.ContentStore](ctx)
	if err != nil {
		return nil, err
	}
	snapshotter, err := graft.Dep[ports.Snapshotter](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := graft.Dep[*config.Config](ctx)
	if err != nil {
		return nil, err
	}
	rr, err := graft.Dep[*remote.Runner](ctx)
	if err != nil {
		return nil, err
	}
	cache, err := graft.Dep[ports.ActionCache](ctx)
	if err != nil {
		return nil, err
	}

	a := New(stacks.Default, stacks.Local, store, snapshotter, log, cfg)
	if rr != nil {
		a.WithClosers(rr)
	}
	if c, ok := cache.(io.Closer); ok {
		a.WithClosers(c)
	}
	return a, nil
}
