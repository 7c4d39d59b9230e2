package trace

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed tasks.yaml
var defaultTasksYAML []byte

// TaskType names an evaluation task whose extraction policy is configured
// in the task table.
type TaskType string

const (
	// TaskAvailability grades whether a scraped page reported the
	// product as available. Its root-run outputs are protected.
	TaskAvailability TaskType = "availability"
	// TaskExtraction grades extracted structured data. No protected
	// fields; children supplement last-writer-wins.
	TaskExtraction TaskType = "extraction"
)

// TaskSpec is the extraction policy for one task type.
type TaskSpec struct {
	Protected struct {
		Inputs    []string `yaml:"inputs"`
		Outputs   []string `yaml:"outputs"`
		Reference []string `yaml:"reference"`
	} `yaml:"protected"`
	Allow struct {
		Inputs  []string `yaml:"inputs"`
		Outputs []string `yaml:"outputs"`
	} `yaml:"allow"`
	Booleans []string `yaml:"booleans"`
}

// TaskConfig is the immutable task table, built once at startup and
// passed explicitly into the extractor.
type TaskConfig struct {
	tasks map[TaskType]TaskSpec
}

type taskFile struct {
	Tasks map[string]TaskSpec `yaml:"tasks"`
}

// DefaultTaskConfig parses the embedded task table. The embedded file is
// validated at build time, so failure here is a programming error.
func DefaultTaskConfig() TaskConfig {
	cfg, err := LoadTaskConfig(defaultTasksYAML)
	if err != nil {
		panic(fmt.Sprintf("parse embedded tasks.yaml: %v", err))
	}
	return cfg
}

// LoadTaskConfig parses a task table from YAML bytes, e.g. an alternate
// rule file supplied for tests or operations.
func LoadTaskConfig(data []byte) (TaskConfig, error) {
	var f taskFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return TaskConfig{}, fmt.Errorf("trace: parse task config: %w", err)
	}
	if len(f.Tasks) == 0 {
		return TaskConfig{}, fmt.Errorf("trace: task config defines no tasks")
	}
	tasks := make(map[TaskType]TaskSpec, len(f.Tasks))
	for name, spec := range f.Tasks {
		tasks[TaskType(name)] = spec
	}
	return TaskConfig{tasks: tasks}, nil
}

// Task returns the policy for a task type. Unknown task types get the
// zero policy: nothing protected, nothing filtered.
func (c TaskConfig) Task(t TaskType) (TaskSpec, bool) {
	spec, ok := c.tasks[t]
	return spec, ok
}

// Types lists the configured task types.
func (c TaskConfig) Types() []TaskType {
	out := make([]TaskType, 0, len(c.tasks))
	for t := range c.tasks {
		out = append(out, t)
	}
	return out
}
