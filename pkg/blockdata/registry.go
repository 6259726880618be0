package blockdata

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/logger"
	"github.com/ajitpratap0/voxpack/pkg/metrics"
)

// Tag identifies an array variant in persisted data and in the Registry.
type Tag string

// Factory constructs arrays of one variant.
type Factory interface {
	// Tag returns the variant tag this factory produces.
	Tag() Tag
	// Create returns an empty array with DefaultDimensions.
	Create() Array
	// CreateSized returns an empty array with the given dimensions.
	CreateSized(d Dimensions) (Array, error)
	// CreateSerializationHandler returns the handler for this variant.
	CreateSerializationHandler() SerializationHandler
}

// SerializationHandler rehydrates arrays of one variant.
type SerializationHandler interface {
	// CanHandle reports whether the handler owns tag.
	CanHandle(tag Tag) bool
	// CreateArray builds an array from a raw buffer. A nil data yields an
	// empty array; otherwise the length must match the dimensions exactly.
	CreateArray(d Dimensions, data []byte) (Array, error)
	// Serialize writes a's dimensions and payload to w.
	Serialize(a Array, w io.Writer) error
	// Deserialize reads what Serialize wrote.
	Deserialize(r io.Reader) (Array, error)
}

// Registry maps tags to factories so persistence and chunk-management code
// can build arrays without depending on concrete variants.
type Registry struct {
	factories map[Tag]Factory
	handlers  map[Tag]SerializationHandler
	mu        sync.RWMutex
	logger    *zap.Logger
	metrics   *metrics.Collector
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Tag]Factory),
		handlers:  make(map[Tag]SerializationHandler),
		logger:    logger.Get().With(zap.String("component", "variant_registry")),
		metrics:   metrics.NewCollector("variant_registry"),
	}
}

// DefaultRegistry returns the process-wide registry, pre-loaded with the
// dense variants. Other packages add their variants to it on init.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, w := range Widths {
			if err := defaultRegistry.Register(NewDenseFactory(w)); err != nil {
				panic(err)
			}
		}
	})
	return defaultRegistry
}

// Register adds f. A second factory for the same tag is a config error.
func (r *Registry) Register(f Factory) error {
	tag := f.Tag()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[tag]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("variant %s already registered", tag)).
			WithDetail("tag", string(tag))
	}

	r.factories[tag] = f
	r.handlers[tag] = f.CreateSerializationHandler()
	r.logger.Debug("array variant registered", zap.String("tag", string(tag)))
	return nil
}

// MustRegister is Register for init functions.
func (r *Registry) MustRegister(f Factory) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Factory returns the factory for tag.
func (r *Registry) Factory(tag Tag) (Factory, error) {
	r.mu.RLock()
	f, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, unknownVariant(tag)
	}
	return f, nil
}

// Handler returns the serialization handler that accepts tag.
func (r *Registry) Handler(tag Tag) (SerializationHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[tag]; ok && h.CanHandle(tag) {
		return h, nil
	}
	// Handlers may accept aliases of their own tag.
	for _, t := range r.sortedTagsLocked() {
		if h := r.handlers[t]; h.CanHandle(tag) {
			return h, nil
		}
	}
	return nil, unknownVariant(tag)
}

// Create returns an empty default-sized array of variant tag.
func (r *Registry) Create(tag Tag) (Array, error) {
	f, err := r.Factory(tag)
	if err != nil {
		return nil, err
	}
	r.metrics.ArrayCreated(string(tag), metrics.PathEmpty)
	return f.Create(), nil
}

// CreateSized returns an empty array of variant tag with dimensions d.
func (r *Registry) CreateSized(tag Tag, d Dimensions) (Array, error) {
	f, err := r.Factory(tag)
	if err != nil {
		return nil, err
	}
	a, err := f.CreateSized(d)
	if err != nil {
		return nil, err
	}
	r.metrics.ArrayCreated(string(tag), metrics.PathEmpty)
	return a, nil
}

// CreateArray rehydrates an array of variant tag from a raw buffer.
func (r *Registry) CreateArray(tag Tag, d Dimensions, data []byte) (Array, error) {
	h, err := r.Handler(tag)
	if err != nil {
		return nil, err
	}
	a, err := h.CreateArray(d, data)
	if err != nil {
		r.logger.Warn("array rehydration rejected",
			zap.String("tag", string(tag)),
			zap.String("dimensions", d.String()),
			zap.Int("length", len(data)),
			zap.Error(err))
		return nil, err
	}
	r.metrics.ArrayCreated(string(tag), metrics.PathData)
	return a, nil
}

// Serialize writes a with the handler for its tag.
func (r *Registry) Serialize(a Array, w io.Writer) error {
	h, err := r.Handler(a.Tag())
	if err != nil {
		return err
	}
	return h.Serialize(a, w)
}

// Deserialize reads an array of variant tag from rd.
func (r *Registry) Deserialize(tag Tag, rd io.Reader) (Array, error) {
	h, err := r.Handler(tag)
	if err != nil {
		return nil, err
	}
	a, err := h.Deserialize(rd)
	if err != nil {
		return nil, err
	}
	r.metrics.ArrayCreated(string(tag), metrics.PathDeserialize)
	return a, nil
}

// TagOf returns the registered tag a belongs to.
func (r *Registry) TagOf(a Array) (Tag, error) {
	tag := a.Tag()
	if !r.Has(tag) {
		return "", unknownVariant(tag)
	}
	return tag, nil
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag Tag) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[tag]
	return ok
}

// Tags lists registered tags in sorted order.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedTagsLocked()
}

func (r *Registry) sortedTagsLocked() []Tag {
	tags := make([]Tag, 0, len(r.factories))
	for t := range r.factories {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func unknownVariant(tag Tag) *errors.Error {
	return errors.New(errors.ErrorTypeUnknownVariant, "no array variant registered for tag").
		WithDetail("tag", string(tag))
}
