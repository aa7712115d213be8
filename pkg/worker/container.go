package worker

// ServiceStatus is the supervisor's view of a service's run state.
type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "active"
	ServiceInactive ServiceStatus = "inactive"
	ServiceUnknown  ServiceStatus = "unknown"
)

// Service is one supervised process declaration.
type Service struct {
	Override    string            `yaml:"override"`
	Summary     string            `yaml:"summary"`
	Command     string            `yaml:"command"`
	Startup     string            `yaml:"startup"`
	Environment map[string]string `yaml:"environment,omitempty"`
}

// Layer is a process-supervision declaration: a named set of services.
type Layer struct {
	Summary     string             `yaml:"summary"`
	Description string             `yaml:"description"`
	Services    map[string]Service `yaml:"services"`
}

// Container is the process/container supervisor the facade drives. The
// platform owns timeouts on every call; none of these block indefinitely.
type Container interface {
	// CanConnect reports whether the supervisor is reachable. False is a
	// valid, expected state, not an error.
	CanConnect() bool

	// Exec runs argv inside the container and returns its combined
	// output.
	Exec(argv []string) (string, error)

	// Pull reads a file from the container filesystem.
	Pull(path string) ([]byte, error)

	// Push writes a file into the container filesystem, optionally
	// creating parent directories.
	Push(path string, data []byte, makeDirs bool) error

	// RemovePath deletes a path, optionally recursively. Removing an
	// absent path is not an error.
	RemovePath(path string, recursive bool) error

	// ServiceStatus returns the run state of a supervised service.
	ServiceStatus(name string) (ServiceStatus, error)

	// Start, Stop and Restart control a supervised service. They fail
	// on supervision errors.
	Start(name string) error
	Stop(name string) error
	Restart(name string) error

	// Plan returns the currently installed service declaration.
	Plan() (Layer, error)

	// AddLayer installs a service declaration, merging with the
	// installed one when combine is set.
	AddLayer(name string, layer Layer, combine bool) error
}
