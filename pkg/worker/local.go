package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// LocalContainer implements Container over the local filesystem and a
// minimal in-process supervisor. It serves the embedded mode where the
// operator runs inside the workload's own container and owns the worker
// process directly.
type LocalContainer struct {
	root        string
	execTimeout time.Duration

	mu       sync.Mutex
	plan     Layer
	services map[string]*exec.Cmd
}

// NewLocalContainer creates a local container rooted at root. Paths passed
// to Pull/Push/RemovePath are resolved beneath it.
func NewLocalContainer(root string) *LocalContainer {
	return &LocalContainer{
		root:        root,
		execTimeout: 30 * time.Second,
		services:    make(map[string]*exec.Cmd),
		plan:        Layer{Services: map[string]Service{}},
	}
}

func (c *LocalContainer) resolve(path string) string {
	return filepath.Join(c.root, filepath.FromSlash(path))
}

// CanConnect implements Container.
func (c *LocalContainer) CanConnect() bool {
	info, err := os.Stat(c.root)
	return err == nil && info.IsDir()
}

// Exec implements Container.
func (c *LocalContainer) Exec(argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.execTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("exec %s: %w", argv[0], err)
	}
	return string(out), nil
}

// Pull implements Container.
func (c *LocalContainer) Pull(path string) ([]byte, error) {
	data, err := os.ReadFile(c.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", path, err)
	}
	return data, nil
}

// Push implements Container.
func (c *LocalContainer) Push(path string, data []byte, makeDirs bool) error {
	target := c.resolve(path)
	if makeDirs {
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directories for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("failed to push %s: %w", path, err)
	}
	return nil
}

// RemovePath implements Container. Removing an absent path is not an
// error.
func (c *LocalContainer) RemovePath(path string, recursive bool) error {
	target := c.resolve(path)
	var err error
	if recursive {
		err = os.RemoveAll(target)
	} else {
		err = os.Remove(target)
		if os.IsNotExist(err) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// ServiceStatus implements Container.
func (c *LocalContainer) ServiceStatus(name string) (ServiceStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, ok := c.services[name]
	if !ok || cmd.Process == nil {
		return ServiceInactive, nil
	}
	if cmd.ProcessState != nil && cmd.ProcessState.Exited() {
		return ServiceInactive, nil
	}
	return ServiceActive, nil
}

// Start implements Container.
func (c *LocalContainer) Start(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(name)
}

func (c *LocalContainer) startLocked(name string) error {
	service, ok := c.plan.Services[name]
	if !ok {
		return fmt.Errorf("no service %q in plan", name)
	}

	argv := strings.Fields(service.Command)
	if len(argv) == 0 {
		return fmt.Errorf("service %q has an empty command", name)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	for k, v := range service.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start service %q: %w", name, err)
	}
	// Reap the process so ProcessState reflects exits.
	go func() { _ = cmd.Wait() }()

	c.services[name] = cmd
	return nil
}

// Stop implements Container.
func (c *LocalContainer) Stop(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(name)
}

func (c *LocalContainer) stopLocked(name string) error {
	cmd, ok := c.services[name]
	if !ok || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !strings.Contains(err.Error(), "already finished") {
		return fmt.Errorf("failed to stop service %q: %w", name, err)
	}
	delete(c.services, name)
	return nil
}

// Restart implements Container.
func (c *LocalContainer) Restart(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.stopLocked(name); err != nil {
		return err
	}
	return c.startLocked(name)
}

// Plan implements Container.
func (c *LocalContainer) Plan() (Layer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Layer{
		Summary:     c.plan.Summary,
		Description: c.plan.Description,
		Services:    make(map[string]Service, len(c.plan.Services)),
	}
	for name, service := range c.plan.Services {
		out.Services[name] = service
	}
	return out, nil
}

// AddLayer implements Container. The declaration is also persisted under
// the container root so `lokiop relation dump` style debugging can see
// what was last installed.
func (c *LocalContainer) AddLayer(name string, layer Layer, combine bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !combine {
		c.plan = Layer{Services: map[string]Service{}}
	}
	c.plan.Summary = layer.Summary
	c.plan.Description = layer.Description
	if c.plan.Services == nil {
		c.plan.Services = map[string]Service{}
	}
	for serviceName, service := range layer.Services {
		c.plan.Services[serviceName] = service
	}

	rendered, err := yaml.Marshal(c.plan)
	if err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}
	planPath := c.resolve(filepath.Join("/var/lib/lokiop", name+"-plan.yaml"))
	if err := os.MkdirAll(filepath.Dir(planPath), 0755); err != nil {
		return fmt.Errorf("failed to create plan directory: %w", err)
	}
	if err := os.WriteFile(planPath, rendered, 0644); err != nil {
		return fmt.Errorf("failed to persist plan: %w", err)
	}
	return nil
}
