package sim

// Middleware defines the actions of a pipeline phase.
type Middleware interface {
	// Tick processes a tick. It returns true if progress is made.
	Tick() bool
}

// MiddlewareFunc adapts a plain function to the Middleware interface.
type MiddlewareFunc func() bool

// Tick calls f.
func (f MiddlewareFunc) Tick() bool {
	return f()
}

// MiddlewareHolder can maintain a list of middleware.
type MiddlewareHolder struct {
	middlewares []Middleware
}

// AddMiddleware adds a middleware to the holder.
func (holder *MiddlewareHolder) AddMiddleware(middleware Middleware) {
	holder.middlewares = append(holder.middlewares, middleware)
}

// Middlewares returns the list of middleware.
func (holder *MiddlewareHolder) Middlewares() []Middleware {
	return holder.middlewares
}

// Tick runs every middleware in insertion order. It returns true if progress
// is made by any of them.
func (holder *MiddlewareHolder) Tick() bool {
	progress := false

	for _, middleware := range holder.middlewares {
		if middleware.Tick() {
			progress = true
		}
	}

	return progress
}

// A Phase is a named group of middlewares that runs at a fixed position of a
// tick.
type Phase struct {
	MiddlewareHolder

	name string
}

// NewPhase creates an empty phase.
func NewPhase(name string) *Phase {
	return &Phase{name: name}
}

// Name returns the name of the phase.
func (p *Phase) Name() string {
	return p.name
}
