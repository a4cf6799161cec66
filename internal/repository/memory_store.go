package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// MemoryStore is a process-local Store with the same integrity rules as the Postgres schema:
// unique codes and usernames, ticket->customer foreign key, cascading deletes and SET NULL on users.
// Transactions are serialized and rolled back by restoring a snapshot.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memoryData
}

type memoryData struct {
	seq         int64
	users       map[int64]domain.User
	customers   map[int64]domain.Customer
	tickets     map[int64]domain.Ticket
	history     map[int64]domain.TicketHistoryEntry
	attachments map[int64]domain.TicketAttachment
	inventory   map[int64]domain.InventoryItem
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

func newMemoryData() memoryData {
	return memoryData{
		users:       make(map[int64]domain.User),
		customers:   make(map[int64]domain.Customer),
		tickets:     make(map[int64]domain.Ticket),
		history:     make(map[int64]domain.TicketHistoryEntry),
		attachments: make(map[int64]domain.TicketAttachment),
		inventory:   make(map[int64]domain.InventoryItem),
	}
}

// clone copies the maps. Stored values hold pointers that are never mutated in place.
func (d memoryData) clone() memoryData {
	c := newMemoryData()
	c.seq = d.seq
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.tickets {
		c.tickets[k] = v
	}
	for k, v := range d.history {
		c.history[k] = v
	}
	for k, v := range d.attachments {
		c.attachments[k] = v
	}
	for k, v := range d.inventory {
		c.inventory[k] = v
	}
	return c
}

func (s *MemoryStore) Repositories() Repositories {
	return s.view(false)
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx, s.view(true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) view(inTx bool) Repositories {
	v := &memoryView{store: s, inTx: inTx}
	return Repositories{
		Customers:   memoryCustomers{v},
		Tickets:     memoryTickets{v},
		History:     memoryHistory{v},
		Attachments: memoryAttachments{v},
		Inventory:   memoryInventory{v},
		Users:       memoryUsers{v},
	}
}

// memoryView runs each operation under the data lock and, outside a transaction,
// also under the transaction lock so that it cannot interleave with a unit of work.
type memoryView struct {
	store *MemoryStore
	inTx  bool
}

func (v *memoryView) do(fn func(d *memoryData) error) error {
	if !v.inTx {
		v.store.txMu.Lock()
		defer v.store.txMu.Unlock()
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(&v.store.data)
}

func (d *memoryData) nextID() int64 {
	d.seq++
	return d.seq
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = pageBounds(limit, offset)
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func containsFold(value *string, term string) bool {
	return value != nil && strings.Contains(strings.ToLower(*value), term)
}

// --- customers ---

type memoryCustomers struct{ v *memoryView }

func (r memoryCustomers) Create(_ context.Context, customer *domain.Customer) error {
	return r.v.do(func(d *memoryData) error {
		if customer.Code != "" {
			for _, c := range d.customers {
				if c.Code == customer.Code {
					return &constraintError{sentinel: ErrDuplicate, constraint: "customers_code_key"}
				}
			}
		}
		customer.ID = d.nextID()
		customer.CreatedAt = time.Now().UTC()
		d.customers[customer.ID] = *customer
		return nil
	})
}

func (r memoryCustomers) Update(_ context.Context, customer *domain.Customer) error {
	return r.v.do(func(d *memoryData) error {
		current, ok := d.customers[customer.ID]
		if !ok {
			return ErrNotFound
		}
		current.Name = customer.Name
		current.Email = customer.Email
		current.Phone = customer.Phone
		current.Address = customer.Address
		d.customers[customer.ID] = current
		return nil
	})
}

func (r memoryCustomers) GetByID(_ context.Context, id int64) (*domain.Customer, error) {
	var out *domain.Customer
	err := r.v.do(func(d *memoryData) error {
		c, ok := d.customers[id]
		if !ok {
			return ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r memoryCustomers) find(match func(c domain.Customer) bool) (*domain.Customer, error) {
	var out *domain.Customer
	err := r.v.do(func(d *memoryData) error {
		for _, id := range sortedKeys(d.customers) {
			c := d.customers[id]
			if match(c) {
				out = &c
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memoryCustomers) GetByCode(_ context.Context, code string) (*domain.Customer, error) {
	code = domain.NormalizeCustomerCode(code)
	return r.find(func(c domain.Customer) bool { return code != "" && c.Code == code })
}

func (r memoryCustomers) FindByEmail(_ context.Context, email string) (*domain.Customer, error) {
	return r.find(func(c domain.Customer) bool { return c.Email != nil && strings.EqualFold(*c.Email, email) })
}

func (r memoryCustomers) FindByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	return r.find(func(c domain.Customer) bool { return c.Phone != nil && *c.Phone == phone })
}

func (r memoryCustomers) FindByName(_ context.Context, name string) (*domain.Customer, error) {
	return r.find(func(c domain.Customer) bool { return strings.EqualFold(c.Name, name) })
}

func (r memoryCustomers) List(_ context.Context, filter CustomerFilter) ([]domain.Customer, error) {
	var out []domain.Customer
	err := r.v.do(func(d *memoryData) error {
		term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))
		var all []domain.Customer
		for _, id := range sortedKeys(d.customers) {
			c := d.customers[id]
			if term != "" && !strings.Contains(strings.ToLower(c.Name), term) &&
				!containsFold(c.Email, term) && !containsFold(c.Phone, term) && !strings.Contains(c.Code, term) {
				continue
			}
			all = append(all, c)
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })
		out = page(all, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func (r memoryCustomers) Count(_ context.Context) (int, error) {
	var n int
	err := r.v.do(func(d *memoryData) error {
		n = len(d.customers)
		return nil
	})
	return n, err
}

func (r memoryCustomers) Delete(_ context.Context, id int64) error {
	return r.v.do(func(d *memoryData) error {
		if _, ok := d.customers[id]; !ok {
			return ErrNotFound
		}
		delete(d.customers, id)
		for tid, t := range d.tickets {
			if t.CustomerID == id {
				d.deleteTicket(tid)
			}
		}
		return nil
	})
}

func (r memoryCustomers) LockCodes(context.Context) error {
	return nil
}

func (r memoryCustomers) HighestCode(_ context.Context) (string, error) {
	var highest string
	err := r.v.do(func(d *memoryData) error {
		for _, c := range d.customers {
			if c.Code > highest {
				highest = c.Code
			}
		}
		return nil
	})
	return highest, err
}

func (r memoryCustomers) ListWithoutCode(_ context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	err := r.v.do(func(d *memoryData) error {
		for _, id := range sortedKeys(d.customers) {
			if c := d.customers[id]; c.Code == "" {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (r memoryCustomers) SetCode(_ context.Context, id int64, code string) error {
	return r.v.do(func(d *memoryData) error {
		c, ok := d.customers[id]
		if !ok || c.Code != "" {
			return ErrNotFound
		}
		for _, other := range d.customers {
			if other.Code == code {
				return &constraintError{sentinel: ErrDuplicate, constraint: "customers_code_key"}
			}
		}
		c.Code = code
		d.customers[id] = c
		return nil
	})
}

// --- tickets ---

type memoryTickets struct{ v *memoryView }

func (d *memoryData) checkUser(id *int64) error {
	if id == nil {
		return nil
	}
	if _, ok := d.users[*id]; !ok {
		return &constraintError{sentinel: ErrForeignKey, constraint: "users_fkey"}
	}
	return nil
}

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.v.do(func(d *memoryData) error {
		if _, ok := d.customers[ticket.CustomerID]; !ok {
			return &constraintError{sentinel: ErrForeignKey, constraint: "tickets_customer_id_fkey"}
		}
		if err := d.checkUser(ticket.CreatedBy); err != nil {
			return err
		}
		if err := d.checkUser(ticket.LastModifiedBy); err != nil {
			return err
		}
		ticket.ID = d.nextID()
		d.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (r memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.v.do(func(d *memoryData) error {
		current, ok := d.tickets[ticket.ID]
		if !ok {
			return ErrNotFound
		}
		if err := d.checkUser(ticket.LastModifiedBy); err != nil {
			return err
		}
		updated := *ticket
		updated.CustomerID = current.CustomerID
		updated.CreatedAt = current.CreatedAt
		updated.CreatedBy = current.CreatedBy
		d.tickets[ticket.ID] = updated
		return nil
	})
}

func (r memoryTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.v.do(func(d *memoryData) error {
		t, ok := d.tickets[id]
		if !ok {
			return ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r memoryTickets) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.v.do(func(d *memoryData) error {
		term := ""
		if filter.SearchTerm != nil {
			term = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		}
		var all []domain.Ticket
		for _, id := range sortedKeys(d.tickets) {
			t := d.tickets[id]
			if filter.CustomerID != nil && t.CustomerID != *filter.CustomerID {
				continue
			}
			if len(filter.Statuses) > 0 && !containsValue(filter.Statuses, t.Status) {
				continue
			}
			if len(filter.RepairStatuses) > 0 && !containsValue(filter.RepairStatuses, t.RepairStatus) {
				continue
			}
			if term != "" && !strings.Contains(strings.ToLower(t.Subject), term) &&
				!containsFold(t.Description, term) && !containsFold(t.Product, term) {
				continue
			}
			all = append(all, t)
		}
		sort.SliceStable(all, func(i, j int) bool {
			if all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].ID > all[j].ID
			}
			return all[i].CreatedAt.After(all[j].CreatedAt)
		})
		out = page(all, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (r memoryTickets) ListNonCanonical(_ context.Context) ([]int64, error) {
	var ids []int64
	err := r.v.do(func(d *memoryData) error {
		for _, id := range sortedKeys(d.tickets) {
			t := d.tickets[id]
			if !t.Status.Valid() || !t.RepairStatus.Valid() {
				ids = append(ids, id)
			}
		}
		return nil
	})
	return ids, err
}

func (r memoryTickets) CountByStatus(_ context.Context) (map[domain.TicketStatus]int, error) {
	counts := make(map[domain.TicketStatus]int)
	err := r.v.do(func(d *memoryData) error {
		for _, t := range d.tickets {
			counts[t.Status]++
		}
		return nil
	})
	return counts, err
}

func (r memoryTickets) Delete(_ context.Context, id int64) error {
	return r.v.do(func(d *memoryData) error {
		if _, ok := d.tickets[id]; !ok {
			return ErrNotFound
		}
		d.deleteTicket(id)
		return nil
	})
}

func (d *memoryData) deleteTicket(id int64) {
	delete(d.tickets, id)
	for hid, h := range d.history {
		if h.TicketID == id {
			delete(d.history, hid)
		}
	}
	for aid, a := range d.attachments {
		if a.TicketID == id {
			delete(d.attachments, aid)
		}
	}
}

// --- history ---

type memoryHistory struct{ v *memoryView }

func (r memoryHistory) Create(_ context.Context, entry *domain.TicketHistoryEntry) error {
	return r.v.do(func(d *memoryData) error {
		if _, ok := d.tickets[entry.TicketID]; !ok {
			return &constraintError{sentinel: ErrForeignKey, constraint: "ticket_history_ticket_id_fkey"}
		}
		if err := d.checkUser(entry.ChangedBy); err != nil {
			return err
		}
		entry.ID = d.nextID()
		d.history[entry.ID] = *entry
		return nil
	})
}

func (r memoryHistory) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistoryEntry, error) {
	var out []domain.TicketHistoryEntry
	err := r.v.do(func(d *memoryData) error {
		for _, id := range sortedKeys(d.history) {
			if h := d.history[id]; h.TicketID == ticketID {
				out = append(out, h)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
		return nil
	})
	return out, err
}

// --- attachments ---

type memoryAttachments struct{ v *memoryView }

func (r memoryAttachments) Create(_ context.Context, attachment *domain.TicketAttachment) error {
	return r.v.do(func(d *memoryData) error {
		if _, ok := d.tickets[attachment.TicketID]; !ok {
			return &constraintError{sentinel: ErrForeignKey, constraint: "ticket_attachments_ticket_id_fkey"}
		}
		if err := d.checkUser(attachment.UploadedBy); err != nil {
			return err
		}
		for _, a := range d.attachments {
			if a.StoredFilename == attachment.StoredFilename {
				return &constraintError{sentinel: ErrDuplicate, constraint: "ticket_attachments_stored_filename_key"}
			}
		}
		attachment.ID = d.nextID()
		d.attachments[attachment.ID] = *attachment
		return nil
	})
}

func (r memoryAttachments) GetByID(_ context.Context, id int64) (*domain.TicketAttachment, error) {
	var out *domain.TicketAttachment
	err := r.v.do(func(d *memoryData) error {
		a, ok := d.attachments[id]
		if !ok {
			return ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r memoryAttachments) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketAttachment, error) {
	var out []domain.TicketAttachment
	err := r.v.do(func(d *memoryData) error {
		for _, id := range sortedKeys(d.attachments) {
			if a := d.attachments[id]; a.TicketID == ticketID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (r memoryAttachments) ListByCustomer(_ context.Context, customerID int64) ([]domain.TicketAttachment, error) {
	var out []domain.TicketAttachment
	err := r.v.do(func(d *memoryData) error {
		for _, id := range sortedKeys(d.attachments) {
			a := d.attachments[id]
			if t, ok := d.tickets[a.TicketID]; ok && t.CustomerID == customerID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// --- inventory ---

type memoryInventory struct{ v *memoryView }

func (d *memoryData) checkInventoryCode(id int64, code string) error {
	for _, item := range d.inventory {
		if item.ID != id && item.Code == code {
			return &constraintError{sentinel: ErrDuplicate, constraint: "inventory_items_code_key"}
		}
	}
	return nil
}

func (r memoryInventory) Create(_ context.Context, item *domain.InventoryItem) error {
	return r.v.do(func(d *memoryData) error {
		if err := d.checkInventoryCode(0, item.Code); err != nil {
			return err
		}
		if item.Quantity < 0 || item.MinimumQuantity < 0 {
			return &constraintError{sentinel: ErrCheckViolation, constraint: "inventory_items_quantity_check"}
		}
		now := time.Now().UTC()
		item.ID = d.nextID()
		item.CreatedAt = now
		item.UpdatedAt = now
		d.inventory[item.ID] = *item
		return nil
	})
}

func (r memoryInventory) Update(_ context.Context, item *domain.InventoryItem) error {
	return r.v.do(func(d *memoryData) error {
		current, ok := d.inventory[item.ID]
		if !ok {
			return ErrNotFound
		}
		if err := d.checkInventoryCode(item.ID, item.Code); err != nil {
			return err
		}
		if item.Quantity < 0 || item.MinimumQuantity < 0 {
			return &constraintError{sentinel: ErrCheckViolation, constraint: "inventory_items_quantity_check"}
		}
		item.CreatedAt = current.CreatedAt
		item.UpdatedAt = time.Now().UTC()
		d.inventory[item.ID] = *item
		return nil
	})
}

func (r memoryInventory) GetByID(_ context.Context, id int64) (*domain.InventoryItem, error) {
	var out *domain.InventoryItem
	err := r.v.do(func(d *memoryData) error {
		item, ok := d.inventory[id]
		if !ok {
			return ErrNotFound
		}
		out = &item
		return nil
	})
	return out, err
}

func (r memoryInventory) List(_ context.Context, filter InventoryFilter) ([]domain.InventoryItem, error) {
	var out []domain.InventoryItem
	err := r.v.do(func(d *memoryData) error {
		term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))
		category := strings.TrimSpace(filter.Category)
		var all []domain.InventoryItem
		for _, id := range sortedKeys(d.inventory) {
			item := d.inventory[id]
			if term != "" && !strings.Contains(strings.ToLower(item.Code), term) && !strings.Contains(strings.ToLower(item.Name), term) {
				continue
			}
			if category != "" && (item.Category == nil || *item.Category != category) {
				continue
			}
			all = append(all, item)
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })
		out = page(all, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func (r memoryInventory) LowStock(_ context.Context) ([]domain.InventoryItem, error) {
	var out []domain.InventoryItem
	err := r.v.do(func(d *memoryData) error {
		for _, id := range sortedKeys(d.inventory) {
			if item := d.inventory[id]; item.BelowMinimum() {
				out = append(out, item)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

func (r memoryInventory) Adjust(_ context.Context, id int64, delta int) (*domain.InventoryItem, error) {
	var out *domain.InventoryItem
	err := r.v.do(func(d *memoryData) error {
		item, ok := d.inventory[id]
		if !ok {
			return ErrNotFound
		}
		if item.Quantity+delta < 0 {
			return ErrInsufficientStock
		}
		item.Quantity += delta
		item.UpdatedAt = time.Now().UTC()
		d.inventory[id] = item
		out = &item
		return nil
	})
	return out, err
}

func (r memoryInventory) Delete(_ context.Context, id int64) error {
	return r.v.do(func(d *memoryData) error {
		if _, ok := d.inventory[id]; !ok {
			return ErrNotFound
		}
		delete(d.inventory, id)
		return nil
	})
}

// --- users ---

type memoryUsers struct{ v *memoryView }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	return r.v.do(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Username == user.Username {
				return &constraintError{sentinel: ErrDuplicate, constraint: "users_username_key"}
			}
		}
		user.ID = d.nextID()
		user.CreatedAt = time.Now().UTC()
		d.users[user.ID] = *user
		return nil
	})
}

func (r memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Username == username {
				out = &u
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memoryUsers) List(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	err := r.v.do(func(d *memoryData) error {
		for _, id := range sortedKeys(d.users) {
			out = append(out, d.users[id])
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Username < out[j].Username })
		return nil
	})
	return out, err
}

func (r memoryUsers) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	return r.v.do(func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return ErrNotFound
		}
		u.PasswordHash = passwordHash
		d.users[id] = u
		return nil
	})
}

func (r memoryUsers) Delete(_ context.Context, id int64) error {
	return r.v.do(func(d *memoryData) error {
		if _, ok := d.users[id]; !ok {
			return ErrNotFound
		}
		delete(d.users, id)
		for tid, t := range d.tickets {
			if t.CreatedBy != nil && *t.CreatedBy == id {
				t.CreatedBy = nil
			}
			if t.LastModifiedBy != nil && *t.LastModifiedBy == id {
				t.LastModifiedBy = nil
			}
			d.tickets[tid] = t
		}
		for hid, h := range d.history {
			if h.ChangedBy != nil && *h.ChangedBy == id {
				h.ChangedBy = nil
				d.history[hid] = h
			}
		}
		for aid, a := range d.attachments {
			if a.UploadedBy != nil && *a.UploadedBy == id {
				a.UploadedBy = nil
				d.attachments[aid] = a
			}
		}
		return nil
	})
}
