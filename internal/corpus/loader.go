package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/domain"
)

// Load reads the corpus collections from a data directory:
//
//	crm.json      customers and products
//	tickets.jsonl one closed ticket summary per line
//	manuals/*.md  one manual per product, filename stem is the SKU,
//	              split into sections at "##" headings
func Load(dataDir string, logger *zap.Logger) (*MemoryStore, error) {
	customers, products, err := loadCRM(filepath.Join(dataDir, "crm.json"))
	if err != nil {
		return nil, fmt.Errorf("load crm: %w", err)
	}

	history, err := loadHistory(filepath.Join(dataDir, "tickets.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("load ticket history: %w", err)
	}

	manuals, err := loadManuals(filepath.Join(dataDir, "manuals"))
	if err != nil {
		return nil, fmt.Errorf("load manuals: %w", err)
	}

	logger.Info("corpus loaded",
		zap.Int("customers", len(customers)),
		zap.Int("products", len(products)),
		zap.Int("history_entries", len(history)),
		zap.Int("manual_sections", len(manuals)))

	return NewMemoryStore(customers, products, manuals, history), nil
}

type crmFile struct {
	Customers []domain.CustomerRecord `json:"customers"`
	Products  []domain.ProductRecord  `json:"products"`
}

func loadCRM(path string) ([]domain.CustomerRecord, []domain.ProductRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var file crmFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, nil, err
	}
	return file.Customers, file.Products, nil
}

func loadHistory(path string) ([]domain.ClosingSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var history []domain.ClosingSummary
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var summary domain.ClosingSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		history = append(history, summary)
	}
	return history, scanner.Err()
}

func loadManuals(dir string) ([]domain.ManualSection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	filenames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		filenames = append(filenames, entry.Name())
	}
	sort.Strings(filenames)

	var sections []domain.ManualSection
	for _, name := range filenames {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read manual %s: %w", name, err)
		}
		sku := strings.ToUpper(strings.TrimSuffix(name, ".md"))
		sections = append(sections, splitManual(sku, string(content))...)
	}
	return sections, nil
}

// splitManual breaks one manual document into sections at H2 headings.
// The H1 document title is skipped, matching the manual authoring format.
func splitManual(sku, content string) []domain.ManualSection {
	var sections []domain.ManualSection
	var title string
	var body []string

	flush := func() {
		if title == "" {
			return
		}
		sections = append(sections, domain.ManualSection{
			ID:        fmt.Sprintf("%s#%02d", sku, len(sections)+1),
			ProductID: sku,
			Title:     title,
			Body:      strings.TrimSpace(strings.Join(body, "\n")),
		})
	}

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "## "):
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			body = body[:0]
		case strings.HasPrefix(line, "# "):
			continue
		default:
			body = append(body, line)
		}
	}
	flush()
	return sections
}
