package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-rdf/rdf"
)

// SetNamespace binds prefix to a namespace IRI. The binding commits with
// the transaction.
func (t *Transaction) SetNamespace(prefix, namespace string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return err
	}
	if _, err := rdf.NewIRI(namespace); err != nil {
		return fmt.Errorf("namespace %q: %w", prefix, err)
	}
	if err := t.txn.Set(t.db.store.Encoder().NamespaceKey(prefix), []byte(namespace)); err != nil {
		return storeError("set namespace", err)
	}
	return nil
}

// GetNamespace returns the IRI bound to prefix
func (t *Transaction) GetNamespace(prefix string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return "", false, err
	}

	item, err := t.txn.Get(t.db.store.Encoder().NamespaceKey(prefix))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeError("get namespace", err)
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, storeError("get namespace", err)
	}
	return string(value), true, nil
}

// RemoveNamespace drops the binding for prefix, if any
func (t *Transaction) RemoveNamespace(prefix string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.txn.Delete(t.db.store.Encoder().NamespaceKey(prefix)); err != nil {
		return storeError("remove namespace", err)
	}
	return nil
}

// Namespaces returns every prefix binding visible to the transaction
func (t *Transaction) Namespaces() (map[string]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefixOnly(prefixNamespace)
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, storeError("list namespaces", err)
		}
		out[string(item.Key()[1:])] = string(value)
	}
	return out, nil
}

// Resolver returns a rdf.NamespaceResolver over the transaction's
// bindings. Lookup failures resolve as unknown prefixes.
func (t *Transaction) Resolver() rdf.NamespaceResolver {
	return func(prefix string) (string, bool) {
		ns, ok, err := t.GetNamespace(prefix)
		if err != nil {
			return "", false
		}
		return ns, ok
	}
}
