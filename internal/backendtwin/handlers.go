package backendtwin

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Handler returns the routed twin. Paths mirror the backend's URL conf,
// trailing slashes included.
func (t *Twin) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(t.capture)

	r.Get("/api/products/", t.listProducts)
	r.Get("/api/products/{id}/", t.getProduct)

	r.Post("/api/register/", t.register)
	r.Post("/api/token/", t.obtainToken)
	r.Post("/api/token/refresh/", t.refreshToken)

	r.Get("/cart/", t.getCart)
	r.Post("/api/cart/", t.addCartItem)
	r.Patch("/cart/{id}/", t.updateCartItem)
	r.Delete("/api/cart/{id}/", t.deleteCartItem)

	r.Get("/cart/api/orders/", t.listOrders)
	r.Post("/cart/api/orders/", t.createOrder)
	r.Post("/orders/{id}/cancel/", t.cancelOrder)
	r.Get("/orders/{id}/track/", t.trackOrder)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/tokens/expire", t.adminExpireTokens)
		r.Post("/orders/{id}/status", t.adminSetStatus)
	})

	return r
}

func (t *Twin) capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		t.record(r, body)
		t.log.Debug("twin request", "method", r.Method, "path", r.URL.Path)
		if t.opts.Before != nil {
			t.opts.Before(r)
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Twin) requireUser(w http.ResponseWriter, r *http.Request) (*user, bool) {
	u, present, err := t.authenticate(r)
	if err != nil {
		tokenNotValid(w)
		return nil, false
	}
	if !present {
		notAuthenticated(w)
		return nil, false
	}
	return u, true
}

// optionalUser is for public routes: anonymous is fine, a bad token is not.
func (t *Twin) optionalUser(w http.ResponseWriter, r *http.Request) bool {
	if _, _, err := t.authenticate(r); err != nil {
		tokenNotValid(w)
		return false
	}
	return true
}

type productView struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       string  `json:"price"`
	Stock       int     `json:"stock"`
	Image       *string `json:"image"`
	Category    string  `json:"category"`
}

func viewProduct(p Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		Image:       p.Image,
		Category:    p.Category,
	}
}

func (t *Twin) listProducts(w http.ResponseWriter, r *http.Request) {
	if !t.optionalUser(w, r) {
		return
	}
	t.mu.Lock()
	out := make([]productView, 0, len(t.products))
	for _, p := range t.products {
		out = append(out, viewProduct(*p))
	}
	t.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (t *Twin) getProduct(w http.ResponseWriter, r *http.Request) {
	if !t.optionalUser(w, r) {
		return
	}
	id, ok := pathID(r)
	t.mu.Lock()
	defer t.mu.Unlock()
	var p *Product
	if ok {
		p = t.productByID(id)
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(*p))
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (t *Twin) register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON format"})
		return
	}
	if in.Username == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Username and password are required"})
		return
	}
	if len(in.Password) < 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Password must be at least 6 characters long"})
		return
	}

	t.mu.Lock()
	if _, taken := t.users[in.Username]; taken {
		t.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Username already taken"})
		return
	}
	t.users[in.Username] = &user{id: t.next("user"), username: in.Username, password: in.Password}
	t.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created successfully. You can now log in.",
		"success": true,
	})
}

func (t *Twin) obtainToken(w http.ResponseWriter, r *http.Request) {
	var in credentials
	_ = json.NewDecoder(r.Body).Decode(&in)

	t.mu.Lock()
	u, ok := t.users[in.Username]
	t.mu.Unlock()
	if !ok || u.password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "No active account found with the given credentials",
		})
		return
	}

	access, err := t.mint(u.username, tokenAccess)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	refresh, err := t.mint(u.username, tokenRefresh)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (t *Twin) refreshToken(w http.ResponseWriter, r *http.Request) {
	t.refreshCalls.Add(1)

	if d := t.opts.RefreshDelay; d > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(d):
		}
	}

	var in struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	invalid := func() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
	}

	c, err := t.parse(in.Refresh, tokenRefresh)
	if err != nil {
		invalid()
		return
	}
	if t.opts.RotateRefresh {
		if _, used := t.usedRefresh.LoadOrStore(c.ID, struct{}{}); used {
			invalid()
			return
		}
	}

	access, err := t.mint(c.Subject, tokenAccess)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	out := map[string]string{"access": access}
	if t.opts.RotateRefresh {
		refresh, err := t.mint(c.Subject, tokenRefresh)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
			return
		}
		out["refresh"] = refresh
	}
	writeJSON(w, http.StatusOK, out)
}

type cartItemView struct {
	ID        int         `json:"id"`
	Product   productView `json:"product"`
	Quantity  int         `json:"quantity"`
	User      int         `json:"user"`
	SessionID *string     `json:"session_id"`
	CreatedAt string      `json:"created_at"`
}

// viewCartItem must be called with t.mu held.
func (t *Twin) viewCartItem(u *user, it *cartItem) cartItemView {
	var pv productView
	if p := t.productByID(it.productID); p != nil {
		pv = viewProduct(*p)
	}
	return cartItemView{
		ID:        it.id,
		Product:   pv,
		Quantity:  it.quantity,
		User:      u.id,
		CreatedAt: it.createdAt.Format(time.RFC3339),
	}
}

func (t *Twin) getCart(w http.ResponseWriter, r *http.Request) {
	u, ok := t.requireUser(w, r)
	if !ok {
		return
	}

	t.mu.Lock()
	items := t.carts[u.id]
	views := make([]cartItemView, 0, len(items))
	for _, it := range items {
		views = append(views, t.viewCartItem(u, it))
	}
	t.mu.Unlock()

	switch t.opts.CartShape {
	case CartBareList:
		writeJSON(w, http.StatusOK, views)
	case CartWrappedMap:
		// Hand-built so the keys keep insertion order.
		var buf bytes.Buffer
		buf.WriteString(`{"cart":{`)
		for i, v := range views {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, _ := json.Marshal(v)
			buf.WriteString(strconv.Quote(strconv.Itoa(v.ID)))
			buf.WriteByte(':')
			buf.Write(b)
		}
		buf.WriteString(`}}`)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"cart": views})
	}
}

func (t *Twin) addCartItem(w http.ResponseWriter, r *http.Request) {
	u, ok := t.requireUser(w, r)
	if !ok {
		return
	}

	var in struct {
		ProductID json.RawMessage `json:"product_id"`
		Quantity  *int            `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}
	productID, ok := intFrom(in.ProductID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Product ID is required"})
		return
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if qty < 1 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"quantity": {"Ensure this value is greater than or equal to 1."}})
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.productByID(productID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
		return
	}
	for _, it := range t.carts[u.id] {
		if it.productID == productID {
			it.quantity += qty
			writeJSON(w, http.StatusCreated, map[string]string{"message": "Item added to cart"})
			return
		}
	}
	t.carts[u.id] = append(t.carts[u.id], &cartItem{
		id:        t.next("cart_item"),
		productID: productID,
		quantity:  qty,
		createdAt: time.Now().UTC(),
	})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Item added to cart"})
}

func (t *Twin) updateCartItem(w http.ResponseWriter, r *http.Request) {
	u, ok := t.requireUser(w, r)
	if !ok {
		return
	}
	id, _ := pathID(r)

	var in struct {
		Quantity *int `json:"quantity"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Quantity == nil || *in.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"quantity": {"Ensure this value is greater than or equal to 1."}})
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range t.carts[u.id] {
		if it.id == id {
			it.quantity = *in.Quantity
			writeJSON(w, http.StatusOK, t.viewCartItem(u, it))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func (t *Twin) deleteCartItem(w http.ResponseWriter, r *http.Request) {
	u, ok := t.requireUser(w, r)
	if !ok {
		return
	}
	id, _ := pathID(r)

	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.carts[u.id]
	for i, it := range items {
		if it.id == id {
			t.carts[u.id] = append(items[:i:i], items[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found in cart"})
}

type orderItemView struct {
	Product struct {
		ID    int     `json:"id"`
		Name  string  `json:"name"`
		Image *string `json:"image"`
		Price string  `json:"price"`
	} `json:"product"`
	Quantity int `json:"quantity"`
}

type orderView struct {
	ID          int             `json:"id"`
	Items       []orderItemView `json:"items"`
	Age         int             `json:"age"`
	CreatedAt   string          `json:"created_at"`
	TotalAmount string          `json:"total_amount"`
	User        int             `json:"user"`
	OrderCode   string          `json:"order_code"`
	MpesaCode   string          `json:"mpesa_code"`
	Delivery    bool            `json:"delivery"`
	DeliveryFee string          `json:"delivery_fee"`
	Status      string          `json:"status"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	PhoneNumber string          `json:"phone_number"`
	Email       string          `json:"email"`
	Gender      string          `json:"gender"`
	Location    string          `json:"location"`
}

func viewOrder(o *order) orderView {
	v := orderView{
		ID:          o.id,
		Age:         o.age,
		CreatedAt:   o.createdAt.Format("2006-01-02T15:04:05"),
		TotalAmount: o.total.StringFixed(2),
		User:        o.userID,
		OrderCode:   o.code,
		MpesaCode:   o.mpesa,
		Delivery:    o.delivery,
		DeliveryFee: o.fee.StringFixed(2),
		Status:      o.status,
		FirstName:   o.firstName,
		LastName:    o.lastName,
		PhoneNumber: o.phone,
		Email:       o.email,
		Gender:      o.gender,
		Location:    o.location,
	}
	for _, it := range o.items {
		var iv orderItemView
		iv.Product.ID = it.product.ID
		iv.Product.Name = it.product.Name
		iv.Product.Image = it.product.Image
		iv.Product.Price = it.product.Price.StringFixed(2)
		iv.Quantity = it.quantity
		v.Items = append(v.Items, iv)
	}
	return v
}

func (t *Twin) listOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := t.requireUser(w, r)
	if !ok {
		return
	}
	t.mu.Lock()
	out := make([]orderView, 0)
	for _, o := range t.orders {
		if o.userID == u.id {
			out = append(out, viewOrder(o))
		}
	}
	t.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

var requiredOrderFields = []string{"mpesa_code", "first_name", "last_name", "phone_number", "location", "age", "email", "gender"}

func (t *Twin) createOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := t.requireUser(w, r)
	if !ok {
		return
	}

	var in map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	missing := map[string][]string{}
	for _, f := range requiredOrderFields {
		if _, ok := in[f]; !ok {
			missing[f] = []string{"This field is required."}
		}
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, missing)
		return
	}

	str := func(k string) string {
		var s string
		_ = json.Unmarshal(in[k], &s)
		return s
	}
	age, ok := intFrom(in["age"])
	if !ok || age <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"age": {"A valid integer is required."}})
		return
	}
	var delivery bool
	_ = json.Unmarshal(in["delivery"], &delivery)

	t.mu.Lock()
	defer t.mu.Unlock()

	items := t.carts[u.id]
	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Cart is empty"})
		return
	}
	for _, it := range items {
		p := t.productByID(it.productID)
		if p == nil || p.Stock < it.quantity {
			name := "product"
			if p != nil {
				name = p.Name
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Not enough stock for " + name})
			return
		}
	}

	o := &order{
		id:        t.next("order"),
		userID:    u.id,
		code:      orderCode(),
		mpesa:     str("mpesa_code"),
		delivery:  delivery,
		fee:       decimal.Zero,
		status:    "Pending",
		createdAt: time.Now().UTC(),
		firstName: str("first_name"),
		lastName:  str("last_name"),
		phone:     str("phone_number"),
		email:     str("email"),
		gender:    str("gender"),
		location:  str("location"),
		age:       age,
	}
	total := decimal.Zero
	for _, it := range items {
		p := t.productByID(it.productID)
		p.Stock -= it.quantity
		o.items = append(o.items, orderItem{product: *p, quantity: it.quantity})
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.quantity))))
	}
	if delivery {
		o.fee = decimal.NewFromInt(DeliveryFee)
		total = total.Add(o.fee)
	}
	o.total = total
	t.orders = append(t.orders, o)
	delete(t.carts, u.id)

	if t.opts.ShortOrderResponse {
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":      "Order placed successfully",
			"order_code":   o.code,
			"total_amount": o.total.StringFixed(2),
		})
		return
	}
	writeJSON(w, http.StatusCreated, viewOrder(o))
}

// findOrder must be called with t.mu held.
func (t *Twin) findOrder(u *user, id int) *order {
	for _, o := range t.orders {
		if o.id == id && o.userID == u.id {
			return o
		}
	}
	return nil
}

func (t *Twin) cancelOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := t.requireUser(w, r)
	if !ok {
		return
	}
	id, _ := pathID(r)

	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.findOrder(u, id)
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Order matches the given query."})
		return
	}
	if o.status != "Pending" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Cancellation not allowed"})
		return
	}
	o.status = "Canceled"
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order canceled successfully"})
}

func (t *Twin) trackOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := t.requireUser(w, r)
	if !ok {
		return
	}
	id, _ := pathID(r)

	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.findOrder(u, id)
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No Order matches the given query."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": o.id, "status": o.status})
}

func (t *Twin) adminExpireTokens(w http.ResponseWriter, r *http.Request) {
	t.ExpireAccessTokens()
	writeJSON(w, http.StatusOK, map[string]string{"message": "access tokens expired"})
}

func (t *Twin) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	var in struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	if err := t.SetOrderStatus(id, in.Status); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order status updated successfully"})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil
}

func intFrom(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
