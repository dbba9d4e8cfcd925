// Package dataset loads the work orders and resource pools a scheduling run
// consumes from YAML or JSON files.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/shopfloor/core/model"
)

// Dataset is the external input of a run: read-only records owned by the
// surrounding system.
type Dataset struct {
	Orders    []model.WorkOrder `json:"orders" yaml:"orders"`
	Equipment []model.Equipment `json:"equipment" yaml:"equipment"`
	Workers   []model.Worker    `json:"workers" yaml:"workers"`
}

// Load reads a dataset from a JSON or YAML file and validates it.
func Load(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()
	ds, err := Decode(f, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Decode reads from r to decode a Dataset in the given format.
func Decode(r io.Reader, format string) (Dataset, error) {
	var ds Dataset
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&ds); err != nil && !errors.Is(err, io.EOF) {
			return ds, err
		}
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&ds); err != nil {
			return ds, err
		}
	default:
		return ds, fmt.Errorf("unsupported format: %s", format)
	}
	return ds, ds.Validate()
}

// Validate rejects missing or duplicate ids and negative durations.
func (d Dataset) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, o := range d.Orders {
		if o.ID == "" {
			errs = append(errs, fmt.Errorf("order %d: id is required", i))
			continue
		}
		if seen[o.ID] {
			errs = append(errs, fmt.Errorf("order %s: duplicate id", o.ID))
		}
		seen[o.ID] = true
		if o.StandardHours < 0 {
			errs = append(errs, fmt.Errorf("order %s: standard_hours must not be negative", o.ID))
		}
	}
	errs = append(errs, uniqueIDs("equipment", len(d.Equipment), func(i int) string { return d.Equipment[i].ID })...)
	errs = append(errs, uniqueIDs("worker", len(d.Workers), func(i int) string { return d.Workers[i].ID })...)
	return errors.Join(errs...)
}

func uniqueIDs(kind string, n int, id func(int) string) []error {
	var errs []error
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		switch v := id(i); {
		case v == "":
			errs = append(errs, fmt.Errorf("%s %d: id is required", kind, i))
		case seen[v]:
			errs = append(errs, fmt.Errorf("%s %s: duplicate id", kind, v))
		default:
			seen[v] = true
		}
	}
	return errs
}

// Order returns the order with the given id.
func (d Dataset) Order(id string) (model.WorkOrder, bool) {
	for _, o := range d.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return model.WorkOrder{}, false
}

// SelectOrders returns the orders named by ids in dataset order, or every
// order when ids is empty. Unknown ids are an error.
func (d Dataset) SelectOrders(ids []string) ([]model.WorkOrder, error) {
	if len(ids) == 0 {
		return append([]model.WorkOrder(nil), d.Orders...), nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.WorkOrder
	for _, o := range d.Orders {
		if want[o.ID] {
			out = append(out, o)
			delete(want, o.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for _, id := range ids {
			if want[id] {
				missing = append(missing, id)
				want[id] = false
			}
		}
		return nil, fmt.Errorf("unknown orders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// OrderIndex maps order ids to orders.
func (d Dataset) OrderIndex() map[string]model.WorkOrder {
	idx := make(map[string]model.WorkOrder, len(d.Orders))
	for _, o := range d.Orders {
		idx[o.ID] = o
	}
	return idx
}
