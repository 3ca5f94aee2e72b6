package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
	"github.com/AlexandroFSD/price-tracker/logger"
	trkerr "github.com/AlexandroFSD/price-tracker/pkg/errors"
)

// itemsFile mirrors the JSON layout of the items config file.
type itemsFile struct {
	Items                      []rawItem `json:"items"`
	GlobalNotificationChannels []string  `json:"global_notification_channels"`
}

type rawItem struct {
	Name        string       `json:"name"`
	URL         string       `json:"url"`
	Selector    selectorList `json:"selector"`
	TargetPrice *float64     `json:"target_price"`
}

// selectorList accepts either a single selector string or a list of them.
type selectorList []string

func (s *selectorList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = selectorList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("selector must be a string or a list of strings")
	}
	*s = selectorList(many)
	return nil
}

// LoadItems reads and validates the tracked-items file. Invalid entries are
// skipped with a warning; the load fails only when no valid item survives.
func LoadItems(path string) ([]domain.ItemSpec, []string, error) {
	log := logger.ForComponent("config")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, trkerr.NewConfiguration(fmt.Sprintf("cannot read items file %s", path), err)
	}

	var file itemsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, trkerr.NewConfiguration(fmt.Sprintf("items file %s is not valid JSON", path), err)
	}

	items := make([]domain.ItemSpec, 0, len(file.Items))
	for i, raw := range file.Items {
		item, err := validateItem(raw)
		if err != nil {
			log.Warn().Int("index", i).Str("name", raw.Name).Err(err).Msg("Skipping invalid item")
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, nil, trkerr.NewConfiguration(
			fmt.Sprintf("no valid items in %s (%d entries rejected)", path, len(file.Items)), nil)
	}

	log.Info().
		Int("items", len(items)).
		Strs("channels", file.GlobalNotificationChannels).
		Msg("Items config loaded")
	return items, file.GlobalNotificationChannels, nil
}

func validateItem(raw rawItem) (domain.ItemSpec, error) {
	if strings.TrimSpace(raw.Name) == "" {
		return domain.ItemSpec{}, trkerr.NewValidation(raw.Name, "item has no name")
	}
	if strings.TrimSpace(raw.URL) == "" {
		return domain.ItemSpec{}, trkerr.NewValidation(raw.Name, "item has no url")
	}
	if raw.TargetPrice == nil {
		return domain.ItemSpec{}, trkerr.NewValidation(raw.Name, "item has no target_price")
	}

	selectors := make([]string, 0, len(raw.Selector))
	for _, s := range raw.Selector {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			selectors = append(selectors, trimmed)
		}
	}
	if len(selectors) == 0 {
		return domain.ItemSpec{}, trkerr.NewValidation(raw.Name, "item has no usable selector")
	}

	return domain.ItemSpec{
		Name:        strings.TrimSpace(raw.Name),
		URL:         strings.TrimSpace(raw.URL),
		Selectors:   selectors,
		TargetPrice: *raw.TargetPrice,
	}, nil
}
