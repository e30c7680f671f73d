package host

import (
	"fmt"

	"github.com/chazu/stackvm/vm"
	"github.com/chazu/stackvm/vm/stackitem"
)

var standardServices = []Service{
	{Name: "System.Runtime.Platform", Handler: runtimePlatform},
	{Name: "System.Runtime.GetScriptHash", Handler: runtimeGetScriptHash},
	{Name: "System.Runtime.Log", Handler: runtimeLog},
	{Name: "System.Runtime.Notify", Handler: runtimeNotify},
	{Name: "System.Storage.Get", Handler: storageGet},
	{Name: "System.Storage.Put", Handler: storagePut},
	{Name: "System.Storage.Delete", Handler: storageDelete},
	{Name: "System.Storage.Keys", Handler: storageKeys},
}

func runtimePlatform(_ *Host, e *vm.Engine) error {
	return e.Push(stackitem.NewByteString([]byte(Platform)))
}

func runtimeGetScriptHash(_ *Host, e *vm.Engine) error {
	hash := currentScript(e)
	return e.Push(stackitem.NewByteString(hash[:]))
}

func runtimeLog(h *Host, e *vm.Engine) error {
	msg, err := popBytes(e, "log message", MaxLogSize)
	if err != nil {
		return err
	}
	entry := LogEntry{Script: currentScript(e), Message: string(msg)}
	h.logs = append(h.logs, entry)
	h.log.Infof("%x: %s", entry.Script[:4], entry.Message)
	return nil
}

// runtimeNotify pops an event name and a state item.
func runtimeNotify(h *Host, e *vm.Engine) error {
	name, err := popBytes(e, "event name", 32)
	if err != nil {
		return err
	}
	state, err := e.Pop()
	if err != nil {
		return err
	}
	n := Notification{Script: currentScript(e), Name: string(name), State: state}
	h.notifications = append(h.notifications, n)
	if js, err := stackitem.ToJSON(state); err == nil {
		h.log.Infof("%x: notify %s %s", n.Script[:4], n.Name, js)
	} else {
		h.log.Infof("%x: notify %s", n.Script[:4], n.Name)
	}
	return nil
}

func (h *Host) requireStorage() error {
	if h.storage == nil {
		return fmt.Errorf("%w: no storage configured", vm.ErrInvalidOperation)
	}
	return nil
}

func storageGet(h *Host, e *vm.Engine) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	key, err := popBytes(e, "storage key", MaxKeySize)
	if err != nil {
		return err
	}
	v, ok, err := h.storage.Get(currentScript(e), key)
	if err != nil {
		return err
	}
	if !ok {
		return e.Push(stackitem.Null{})
	}
	return e.Push(stackitem.NewByteString(v))
}

// storagePut pops a key and then a value.
func storagePut(h *Host, e *vm.Engine) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	key, err := popBytes(e, "storage key", MaxKeySize)
	if err != nil {
		return err
	}
	value, err := popBytes(e, "storage value", MaxValueSize)
	if err != nil {
		return err
	}
	return h.storage.Put(currentScript(e), key, value)
}

func storageDelete(h *Host, e *vm.Engine) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	key, err := popBytes(e, "storage key", MaxKeySize)
	if err != nil {
		return err
	}
	return h.storage.Delete(currentScript(e), key)
}

// storageKeys pushes an Array of the calling script's keys.
func storageKeys(h *Host, e *vm.Engine) error {
	if err := h.requireStorage(); err != nil {
		return err
	}
	keys, err := h.storage.Keys(currentScript(e))
	if err != nil {
		return err
	}
	items := make([]stackitem.Item, len(keys))
	for i, k := range keys {
		items[i] = stackitem.NewByteString(k)
	}
	return e.Push(stackitem.NewArray(items))
}
