package bench

import (
	"sync"
	"sync/atomic"

	"github.com/vango-dev/statelift/pkg/hooks"
	"github.com/vango-dev/statelift/pkg/proxy"
	"github.com/vango-dev/statelift/pkg/store"
)

// Table is the rows screen: one list handle reading every row, and one
// selector handle per row deciding whether that row is highlighted.
type Table struct {
	store *store.Store
	rows  *rowSource

	list *hooks.Handle

	mu       sync.Mutex
	selected map[int]*hooks.Selected[bool]
	closed   bool

	listRenders atomic.Int64
	rowRenders  atomic.Int64
}

// NewTable creates the store and mounts the list. Selecting a row notifies
// every row handle, so the flush bound defaults to well above the row count.
func NewTable(seed int64, opts ...store.Option) (*Table, error) {
	opts = append([]store.Option{store.WithMaxFlush(1 << 20)}, opts...)
	s, err := store.New(map[string]any{"data": []any{}, "selected": 0}, opts...)
	if err != nil {
		return nil, err
	}

	t := &Table{
		store:    s,
		rows:     newRowSource(seed),
		selected: make(map[int]*hooks.Selected[bool]),
	}
	t.list, err = hooks.Use(s.State(), hooks.WithLabel("list"))
	if err != nil {
		return nil, err
	}
	t.list.Subscribe(t.render)
	t.render()
	return t, nil
}

// Store returns the table's store.
func (t *Table) Store() *store.Store {
	return t.store
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.store.State().Object("data").Len()
}

// Mounted returns the number of row handles.
func (t *Table) Mounted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.selected)
}

// Selected reports whether the row handle of id is highlighted.
func (t *Table) Selected(id int) bool {
	t.mu.Lock()
	sel, ok := t.selected[id]
	t.mu.Unlock()
	return ok && sel.Value()
}

// Renders returns the list and row render counts.
func (t *Table) Renders() (list, rows int64) {
	return t.listRenders.Load(), t.rowRenders.Load()
}

// Close unmounts every handle.
func (t *Table) Close() {
	t.mu.Lock()
	rows := t.selected
	t.selected = make(map[int]*hooks.Selected[bool])
	t.closed = true
	t.mu.Unlock()

	for _, sel := range rows {
		sel.Close()
	}
	t.list.Close()
}

// render reads every row through the list handle, mounting row handles for
// new ids and unmounting those of removed rows.
func (t *Table) render() {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	t.listRenders.Add(1)

	data := t.list.State().Object("data")
	if data == nil {
		return
	}
	seen := make(map[int]struct{}, data.Len())
	data.Range(func(_ string, item any) bool {
		row, ok := item.(*proxy.View)
		if !ok {
			return true
		}
		id := row.Int("id")
		_ = row.String("label")
		seen[id] = struct{}{}
		t.mount(id)
		return true
	})

	t.mu.Lock()
	var stale []*hooks.Selected[bool]
	for id, sel := range t.selected {
		if _, ok := seen[id]; !ok {
			stale = append(stale, sel)
			delete(t.selected, id)
		}
	}
	t.mu.Unlock()

	for _, sel := range stale {
		sel.Close()
	}
}

func (t *Table) mount(id int) {
	t.mu.Lock()
	_, ok := t.selected[id]
	t.mu.Unlock()
	if ok {
		return
	}

	sel, err := hooks.UseSelector(t.store.State(), func(v *proxy.View) bool {
		return v.Int("selected") == id
	})
	if err != nil {
		return
	}
	sel.Subscribe(func() { t.rowRenders.Add(1) })

	t.mu.Lock()
	t.selected[id] = sel
	t.mu.Unlock()
}

// Run replaces the rows with count new ones.
func (t *Table) Run(count int) {
	state := t.store.State()
	t.store.Batch(func() {
		state.Set("data", t.rows.build(count))
		state.Set("selected", 0)
	})
}

// Add appends count new rows.
func (t *Table) Add(count int) {
	t.store.State().Object("data").Push(t.rows.build(count)...)
}

// Update appends " !!!" to the label of every 10th row.
func (t *Table) Update() {
	data := t.store.State().Object("data")
	t.store.Batch(func() {
		for i, n := 0, data.Len(); i < n; i += 10 {
			row := data.Index(i).(*proxy.View)
			row.Set("label", row.String("label")+" !!!")
		}
	})
}

// Clear removes every row.
func (t *Table) Clear() {
	state := t.store.State()
	t.store.Batch(func() {
		state.Set("data", []any{})
		state.Set("selected", 0)
	})
}

// SwapRows exchanges rows 1 and 998 when the table has more than 998 rows.
func (t *Table) SwapRows() {
	data := t.store.State().Object("data")
	if data.Len() <= 998 {
		return
	}
	t.store.Batch(func() {
		tmp := data.Index(1)
		data.SetIndex(1, data.Index(998))
		data.SetIndex(998, tmp)
	})
}

// Remove deletes the row with the given id.
func (t *Table) Remove(id int) bool {
	data := t.store.State().Object("data")
	for i, n := 0, data.Len(); i < n; i++ {
		if row, ok := data.Index(i).(*proxy.View); ok && row.Int("id") == id {
			data.Splice(i, 1)
			return true
		}
	}
	return false
}

// Select highlights the row with the given id.
func (t *Table) Select(id int) {
	t.store.State().Set("selected", id)
}

// IDAt returns the id of the i-th row, or 0.
func (t *Table) IDAt(i int) int {
	row, _ := t.store.State().Object("data").Index(i).(*proxy.View)
	if row == nil {
		return 0
	}
	return row.Int("id")
}
