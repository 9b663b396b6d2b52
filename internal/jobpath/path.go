package jobpath

import "strings"

// Task is a single (namespace, name, arguments) triple — three non-empty
// path segments with no internal slashes.
type Task struct {
	Namespace string
	Name      string
	Arguments string
}

// String renders a task as "namespace/name/arguments".
func (t Task) String() string {
	return t.Namespace + "/" + t.Name + "/" + t.Arguments
}

// Job is a level-of-analysis paired with an ordered, non-empty task list.
// Its identity is its canonical path, as returned by Render.
type Job struct {
	LOA   string
	Tasks []Task
}

// Render is the left inverse of Parse: it reconstructs the canonical path
// "loa/<task1>/<task2>/.../<taskN>" for a (loa, tasks) pair.
func Render(loa string, tasks []Task) string {
	parts := make([]string, 0, 1+3*len(tasks))
	parts = append(parts, loa)
	for _, t := range tasks {
		parts = append(parts, t.Namespace, t.Name, t.Arguments)
	}
	return strings.Join(parts, "/")
}

// Parse splits a request path into a level-of-analysis and its ordered task
// list. The path must match LOA ("/" SEG "/" SEG "/" SEG)+: one leading
// segment followed by one or more triples, with no empty segments and no
// trailing slash.
func Parse(path string) (loa string, tasks []Task, err error) {
	if path == "" {
		return "", nil, malformedf(path, "empty path")
	}
	if strings.HasPrefix(path, "/") {
		return "", nil, malformedf(path, "leading slash")
	}
	if strings.HasSuffix(path, "/") {
		return "", nil, malformedf(path, "trailing slash")
	}

	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return "", nil, malformedf(path, "empty segment")
		}
	}

	if len(segs) < 4 {
		return "", nil, malformedf(path, "need at least one task triple after the LOA segment")
	}
	if (len(segs)-1)%3 != 0 {
		return "", nil, malformedf(path, "trailing segments do not form a complete task triple")
	}

	loa = segs[0]
	rest := segs[1:]
	tasks = make([]Task, 0, len(rest)/3)
	for i := 0; i < len(rest); i += 3 {
		tasks = append(tasks, Task{
			Namespace: rest[i],
			Name:      rest[i+1],
			Arguments: rest[i+2],
		})
	}
	return loa, tasks, nil
}

// Chain returns the N subjob paths for a job with N task triples, leaf
// (shortest, one task) first and root (the full job) last. Element i
// (0-indexed) is render(loa, tasks[N-1-i:]).
func Chain(loa string, tasks []Task) []string {
	n := len(tasks)
	chain := make([]string, n)
	for i := 0; i < n; i++ {
		suffixLen := i + 1
		chain[i] = Render(loa, tasks[n-suffixLen:])
	}
	return chain
}

// ParseChain parses path and returns its subjob chain directly.
func ParseChain(path string) ([]string, error) {
	loa, tasks, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return Chain(loa, tasks), nil
}
