package catalog

// TriggerEvent identifies one of the six (timing x operation)
// categories a trigger can fire on.
type TriggerEvent int

const (
	BeforeInsert TriggerEvent = iota
	AfterInsert
	BeforeUpdate
	AfterUpdate
	BeforeDelete
	AfterDelete
)

// TriggerFunc runs one trigger invocation. For row triggers oldData/
// newData are the row being processed (nil where not applicable); for
// statement triggers both are nil. BEFORE row triggers may return a
// modified newData that replaces what gets inserted/updated.
type TriggerFunc func(session SessionContext, oldData, newData []any) ([]any, error)

// Trigger is one registered handler for a TriggerEvent.
type Trigger struct {
	Name      string
	Event     TriggerEvent
	Row       bool // true = FOR EACH ROW, false = statement-level
	Fire      TriggerFunc
}

// TriggerList holds every trigger for a table, keyed by event, fired in
// registration order.
type TriggerList struct {
	byEvent map[TriggerEvent][]*Trigger
}

func NewTriggerList() *TriggerList {
	return &TriggerList{byEvent: make(map[TriggerEvent][]*Trigger)}
}

func (tl *TriggerList) Add(t *Trigger) {
	tl.byEvent[t.Event] = append(tl.byEvent[t.Event], t)
}

func (tl *TriggerList) Remove(name string, event TriggerEvent) {
	list := tl.byEvent[event]
	for i, t := range list {
		if t.Name == name {
			tl.byEvent[event] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// FireRow runs every row-level trigger for event in order. BEFORE
// triggers may mutate newData; the (possibly replaced) newData is
// threaded through the chain and returned. AFTER triggers each receive
// a freshly duplicated copy of newData so none can observe a sibling
// trigger's mutation.
func (tl *TriggerList) FireRow(session SessionContext, event TriggerEvent, oldData, newData []any) ([]any, error) {
	isBefore := event == BeforeInsert || event == BeforeUpdate || event == BeforeDelete

	for _, t := range tl.byEvent[event] {
		if !t.Row {
			continue
		}
		if isBefore {
			out, err := t.Fire(session, oldData, newData)
			if err != nil {
				return newData, err
			}
			if out != nil {
				newData = out
			}
			continue
		}

		dup := duplicate(newData)
		if _, err := t.Fire(session, oldData, dup); err != nil {
			return newData, err
		}
	}
	return newData, nil
}

// FireStatement runs every statement-level trigger for event once, with
// (nil, nil).
func (tl *TriggerList) FireStatement(session SessionContext, event TriggerEvent) error {
	for _, t := range tl.byEvent[event] {
		if t.Row {
			continue
		}
		if _, err := t.Fire(session, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func duplicate(data []any) []any {
	if data == nil {
		return nil
	}
	out := make([]any, len(data))
	copy(out, data)
	return out
}
