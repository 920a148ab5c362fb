package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"meddispense/m/domain"
)

const namePrefix = "medication_name_"

// formError is a submission problem shown to the operator as is.
type formError string

func (e formError) Error() string { return string(e) }

// parseItems groups medication_name_<i>, dosage_<i> and quantity_<i> by i
// and returns the rows ordered by i. Rows left completely blank are ignored.
func parseItems(form url.Values) ([]domain.RequestItem, error) {
	type row struct {
		index  int
		suffix string
	}
	var rows []row
	for key := range form {
		suffix, ok := strings.CutPrefix(key, namePrefix)
		if !ok {
			continue
		}
		i, err := strconv.Atoi(suffix)
		if err != nil || i < 0 {
			return nil, formError(fmt.Sprintf("Unexpected field %q.", key))
		}
		rows = append(rows, row{index: i, suffix: suffix})
	}
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].index != rows[b].index {
			return rows[a].index < rows[b].index
		}
		return rows[a].suffix < rows[b].suffix
	})

	items := make([]domain.RequestItem, 0, len(rows))
	for _, rw := range rows {
		i := rw.index
		name := strings.TrimSpace(form.Get(namePrefix + rw.suffix))
		dosage := strings.TrimSpace(form.Get("dosage_" + rw.suffix))
		rawQty := strings.TrimSpace(form.Get("quantity_" + rw.suffix))

		if name == "" && dosage == "" && rawQty == "" {
			continue
		}
		if name == "" || dosage == "" {
			return nil, formError(fmt.Sprintf("Row %d needs both a medication name and a dosage.", i+1))
		}
		qty, err := strconv.Atoi(rawQty)
		if err != nil || qty <= 0 {
			return nil, formError(fmt.Sprintf("Invalid quantity %q for %s %s: must be a positive whole number.", rawQty, name, dosage))
		}
		items = append(items, domain.RequestItem{MedicationName: name, Dosage: dosage, Quantity: qty})
	}

	if len(items) == 0 {
		return nil, formError("Add at least one medication to dispense.")
	}
	return items, nil
}
