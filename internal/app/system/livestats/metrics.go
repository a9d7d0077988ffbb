package livestats

import (
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/producthub/internal/domain/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ActiveWindow is how recently a user must have signed in to count as active.
const ActiveWindow = 7 * 24 * time.Hour

// Bucket is one entry of a distribution.
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CountByKey groups records by key and counts them. Buckets appear in the
// order their key was first seen; callers must not assume sorted output.
func CountByKey[T any, K ~string](records []T, key func(T) K) []Bucket {
	out := []Bucket{}
	idx := make(map[K]int)
	caser := cases.Title(language.English)
	for _, r := range records {
		k := key(r)
		if i, ok := idx[k]; ok {
			out[i].Count++
			continue
		}
		idx[k] = len(out)
		out = append(out, Bucket{
			Key:   string(k),
			Label: caser.String(strings.ReplaceAll(string(k), "_", " ")),
			Count: 1,
		})
	}
	return out
}

// IsActiveWithin reports whether u signed in less than window before ref.
// A sign-in exactly window ago does not count.
func IsActiveWithin(u models.User, window time.Duration, ref time.Time) bool {
	return ref.Sub(u.LastLogin) < window
}

// CountActive counts users active within window of ref.
func CountActive(users []models.User, window time.Duration, ref time.Time) int {
	n := 0
	for _, u := range users {
		if IsActiveWithin(u, window, ref) {
			n++
		}
	}
	return n
}

// ActiveProjects counts products in design or development.
func ActiveProjects(products []models.Product) int {
	n := 0
	for _, p := range products {
		if p.Status == models.ProductDesign || p.Status == models.ProductDevelopment {
			n++
		}
	}
	return n
}

// RecentProducts returns up to n products, newest first.
func RecentProducts(products []models.Product, n int) []models.Product {
	sorted := make([]models.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return head(sorted, n)
}

// RecentTasks returns up to n tasks, newest first.
func RecentTasks(tasks []models.Task, n int) []models.Task {
	sorted := make([]models.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return head(sorted, n)
}

func head[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(s) > n {
		s = s[:n]
	}
	return s
}
