// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[prediction.ModelClient]()
//	reg.Register("exec", func(conf map[string]any) (prediction.ModelClient, error) {
//	    var c struct{ Command string `json:"command"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newExecClient(c.Command), nil
//	})
//	mc, err := reg.Create(factory.ModuleConfig{Type: "exec", Conf: map[string]any{"command": "python3"}})
package factory
