// Package factory provides a small generic registry used to instantiate
// pluggable modules (plan optimizers, metrics sinks) from configuration. A
// module is selected by a type string and receives a map of raw settings that
// its factory decodes into a typed struct.
//
//	reg := factory.NewRegistry[engine.Optimizer]()
//	reg.MustRegister("priority_swap", func(conf map[string]any) (engine.Optimizer, error) {
//	    var c struct{ MaxIterations int `json:"max_iterations"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return engine.PrioritySwap{MaxIterations: c.MaxIterations}, nil
//	})
//	opt, err := reg.Create(factory.ModuleConfig{Type: "priority_swap"})
package factory
