package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
)

const geoLookupTimeout = 3 * time.Second

func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// RecordPageView is public. The visitor IP is only stored hashed.
func (h *Handler) RecordPageView(c *fiber.Ctx) error {
	var in PageViewInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	view := models.PageView{
		Path:      in.Path,
		Referrer:  in.Referrer,
		UserAgent: truncate(c.Get(fiber.HeaderUserAgent), 512),
		IPHash:    hashIP(c.IP()),
		CreatedAt: h.now().UTC(),
	}
	if h.Sessions != nil {
		if sess, err := h.Sessions.Get(c); err == nil {
			view.UID, _ = sess.Get(middlewares.SessionUserKey).(string)
		}
	}
	if h.Geo != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), geoLookupTimeout)
		loc, err := h.Geo.Lookup(ctx, c.IP())
		cancel()
		if err != nil {
			logger.Component("analytics").WithError(err).Debug("geolocation failed")
		} else if loc != nil {
			view.Country, view.City = loc.Country, loc.City
		}
	}

	if err := database.DB.WithContext(c.UserContext()).Create(&view).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "recorded"})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type statusTotals struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type monthRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

type customerRevenue struct {
	CustomerID   uint    `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	Revenue      float64 `json:"revenue"`
}

// AnalyticsSummary aggregates the caller's invoices: totals per status, paid revenue per
// month over the last 12 months and the top customers by paid revenue.
func (h *Handler) AnalyticsSummary(c *fiber.Ctx) error {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	var invoices []models.Invoice
	if err := tx.Scopes(database.ForUser(uid), database.Active).
		Select("id", "customer_id", "customer_name", "issue_date", "status", "paid_at", "total").
		Find(&invoices).Error; err != nil {
		return err
	}

	now := h.now().UTC()
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	months := make([]string, 12)
	monthly := map[string]decimal.Decimal{}
	for i := range months {
		months[i] = firstMonth.AddDate(0, i, 0).Format("2006-01")
		monthly[months[i]] = decimal.Zero
	}

	byStatus := map[models.InvoiceStatus]decimal.Decimal{}
	counts := map[models.InvoiceStatus]int{}
	byCustomer := map[uint]decimal.Decimal{}
	names := map[uint]string{}
	for _, inv := range invoices {
		total := decimal.NewFromFloat(inv.Total)
		byStatus[inv.Status] = byStatus[inv.Status].Add(total)
		counts[inv.Status]++
		if inv.Status != models.InvoicePaid {
			continue
		}
		paid := inv.IssueDate
		if inv.PaidAt != nil {
			paid = *inv.PaidAt
		}
		if m := paid.UTC().Format("2006-01"); !paid.Before(firstMonth) {
			if cur, ok := monthly[m]; ok {
				monthly[m] = cur.Add(total)
			}
		}
		byCustomer[inv.CustomerID] = byCustomer[inv.CustomerID].Add(total)
		names[inv.CustomerID] = inv.CustomerName
	}

	statuses := map[string]statusTotals{}
	for _, s := range []models.InvoiceStatus{models.InvoiceUnpaid, models.InvoicePaid, models.InvoiceOverdue} {
		statuses[string(s)] = statusTotals{Count: counts[s], Amount: money(byStatus[s])}
	}

	revenue := make([]monthRevenue, len(months))
	for i, m := range months {
		revenue[i] = monthRevenue{Month: m, Revenue: money(monthly[m])}
	}

	top := make([]customerRevenue, 0, len(byCustomer))
	for id, amount := range byCustomer {
		top = append(top, customerRevenue{CustomerID: id, CustomerName: names[id], Revenue: money(amount)})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Revenue != top[j].Revenue {
			return top[i].Revenue > top[j].Revenue
		}
		return top[i].CustomerID < top[j].CustomerID
	})
	if len(top) > 5 {
		top = top[:5]
	}

	outstanding := byStatus[models.InvoiceUnpaid].Add(byStatus[models.InvoiceOverdue])
	return c.JSON(fiber.Map{
		"invoices":         len(invoices),
		"by_status":        statuses,
		"outstanding":      money(outstanding),
		"revenue_by_month": revenue,
		"top_customers":    top,
	})
}

type countEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func topCounts(m map[string]int, limit int) []countEntry {
	out := make([]countEntry, 0, len(m))
	for k, n := range m {
		out = append(out, countEntry{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AdminAnalytics summarizes page views over ?days= (default 30, max 365) and users by
// subscription status.
func (h *Handler) AdminAnalytics(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 1 || days > 365 {
		return fiber.NewError(fiber.StatusBadRequest, "days must be between 1 and 365")
	}
	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}

	now := h.now().UTC()
	since := today(now).AddDate(0, 0, -(days - 1))
	var views []models.PageView
	if err := tx.Where("created_at >= ?", since).
		Select("path", "ip_hash", "country", "created_at").
		Find(&views).Error; err != nil {
		return err
	}

	perDay := map[string]int{}
	for i := 0; i < days; i++ {
		perDay[since.AddDate(0, 0, i).Format("2006-01-02")] = 0
	}
	countries := map[string]int{}
	paths := map[string]int{}
	visitors := map[string]struct{}{}
	for _, v := range views {
		perDay[v.CreatedAt.UTC().Format("2006-01-02")]++
		country := v.Country
		if country == "" {
			country = "unknown"
		}
		countries[country]++
		paths[v.Path]++
		visitors[v.IPHash] = struct{}{}
	}
	daily := topCounts(perDay, 0)
	sort.Slice(daily, func(i, j int) bool { return daily[i].Key < daily[j].Key })

	var users []models.User
	if err := tx.Select("id", "is_admin", "subscription_granted", "subscription_status", "trial_ends_at").
		Find(&users).Error; err != nil {
		return err
	}
	byStatus := map[string]int{}
	entitled := 0
	for _, u := range users {
		byStatus[string(u.SubscriptionStatus)]++
		if u.HasAccess(now) {
			entitled++
		}
	}

	return c.JSON(fiber.Map{
		"days":            days,
		"page_views":      len(views),
		"unique_visitors": len(visitors),
		"views_per_day":   daily,
		"by_country":      topCounts(countries, 20),
		"top_paths":       topCounts(paths, 10),
		"users": fiber.Map{
			"total":       len(users),
			"with_access": entitled,
			"by_status":   byStatus,
		},
	})
}
