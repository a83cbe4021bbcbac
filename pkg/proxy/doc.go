// Package proxy provides the interception layer used by statelift stores.
//
// A state graph is made of raw nodes: objects (ordered string keys) and
// arrays (a slice of items). Nodes are never touched directly by application
// code. Instead, a Layer hands out Views, and every read, write, delete, key
// enumeration and membership check performed through a View invokes the
// layer's Hooks while keeping ordinary object semantics on the raw data.
//
// Usage:
//
//	layer := proxy.NewLayer(proxy.Hooks{
//	    OnGet: func(target *proxy.Node, key string, value any) {
//	        log.Println("read", key)
//	    },
//	})
//	state := layer.Wrap(map[string]any{
//	    "todos": []any{map[string]any{"title": "write docs", "done": false}},
//	})
//	first := state.Object("todos").Object("0")
//	first.Set("done", true)
//
// Computed properties and actions are stored as Getter and Method values.
// Getters receive the view the read went through, so sibling reads made by
// the getter are observed by the same layer stack:
//
//	state := layer.Wrap(map[string]any{
//	    "a": 5,
//	    "b": 5,
//	    "sum": proxy.Getter(func(self *proxy.View) any {
//	        return self.Int("a") + self.Int("b")
//	    }),
//	})
//
// Layers can be stacked: wrapping a View of one layer with another layer
// yields views whose reads run through both. Stores use this to give each
// consumer its own revocable view over the shared state.
//
// Values whose behaviour cannot be intercepted (time.Time, *regexp.Regexp,
// []byte, channels, non string-keyed maps and similar) are returned as-is.
// In strict mode reading them fails with a *StrictError instead.
package proxy
