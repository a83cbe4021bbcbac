// Package hooks adapts store consumers to the external-store contract used
// by render loops: a handle exposes Subscribe and Snapshot, and the snapshot
// token changes identity exactly when a read made through the handle's view
// was invalidated.
//
//	h, err := hooks.Use(s.State())
//	if err != nil {
//	    return err
//	}
//	unsubscribe := h.Subscribe(func() { rerender(h.Snapshot()) })
//	defer unsubscribe()
//
//	fmt.Println(h.State().String("title")) // tracked
//
// UseSelector narrows a handle to the result of a selector; subscribers are
// only called when that result changes.
//
// A handle with no subscribers left destroys its consumer after DestroyDelay.
// Subscribing again before the delay elapses cancels the destroy.
package hooks
