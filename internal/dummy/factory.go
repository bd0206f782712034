package dummy

import (
	"github.com/morezero/components/pkg/build"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/rpc"
)

var (
	MemoryPersistenceLocator   = locator.New("dummies", "persistence", "memory", "*", "1.0")
	PostgresPersistenceLocator = locator.New("dummies", "persistence", "postgres", "*", "1.0")
	ControllerLocator          = locator.New("dummies", "controller", "default", "*", "1.0")
	ServiceLocator             = locator.New("dummies", "service", "grpc", "*", "1.0")
)

// NewService creates the gRPC service exposing the controller's commands.
func NewService() *rpc.CommandableService {
	svc := rpc.NewCommandableService(ServiceName)
	svc.DependOn("controller", ControllerLocator)
	return svc
}

// NewFactory creates the dummy components.
func NewFactory() *build.ComponentFactory {
	f := build.NewComponentFactory()
	f.RegisterValue(MemoryPersistenceLocator, func() any { return NewMemoryPersistence() })
	f.RegisterValue(PostgresPersistenceLocator, func() any { return NewPostgresPersistence() })
	f.RegisterValue(ControllerLocator, func() any { return NewController() })
	f.RegisterValue(ServiceLocator, func() any { return NewService() })
	return f
}
