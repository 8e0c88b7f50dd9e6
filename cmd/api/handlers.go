package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"marketplace/pkg/market"
	"marketplace/pkg/order"
	"marketplace/pkg/otel"
	"marketplace/pkg/product"
)

// loginRequest names the buyer a new cart belongs to.
type loginRequest struct {
	Username string `json:"username"`
}

// producerResponse describes a producer's queue.
type producerResponse struct {
	ID        int `json:"id"`
	Available int `json:"available"`
	Capacity  int `json:"capacity"`
}

// cartResponse lists the products in the caller's cart.
type cartResponse struct {
	ID    int            `json:"id"`
	Buyer string         `json:"buyer"`
	Items []product.Spec `json:"items"`
}

// loginHandler creates a cart for the user and a session bound to it.
// @Summary Login
// @Description Creates a cart and sets the session cookie that owns it
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200 {object} cartResponse
// @Router /login [post]
func loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "loginHandler")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "invalid credentials", http.StatusBadRequest)
		return
	}
	sess := session{ID: uuid.NewString(), Buyer: req.Username, Cart: mkt.NewCart()}
	if err := sessions.save(ctx, sess); err != nil {
		log.Error(ctx, "save session", "error", err)
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sess.ID, Path: "/", Expires: time.Now().Add(sessionTTL), HttpOnly: true})
	log.Info(ctx, "cart created", "buyer", sess.Buyer, "cart_id", int(sess.Cart))
	writeJSON(w, http.StatusOK, cartResponse{ID: int(sess.Cart), Buyer: sess.Buyer, Items: []product.Spec{}})
}

// registerProducerHandler registers a new producer.
// @Summary Register producer
// @Produce json
// @Success 201 {object} producerResponse
// @Router /producers [post]
func registerProducerHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "registerProducerHandler")
	defer span.End()

	id := mkt.RegisterProducer()
	log.Info(ctx, "producer registered", "producer_id", int(id))
	writeJSON(w, http.StatusCreated, producerResponse{ID: int(id), Capacity: mkt.Capacity()})
}

// getProducerHandler reports how many units a producer has queued.
// @Summary Get producer
// @Produce json
// @Param id path int true "Producer ID"
// @Success 200 {object} producerResponse
// @Router /producers/{id} [get]
func getProducerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := producerID(w, r)
	if !ok {
		return
	}
	n, err := mkt.Available(id)
	if errors.Is(err, market.ErrUnknownProducer) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, producerResponse{ID: int(id), Available: n, Capacity: mkt.Capacity()})
}

// publishHandler offers one unit to the producer's queue.
// @Summary Publish product
// @Description Returns 409 when the producer's queue is full; retry later.
// @Accept json
// @Param id path int true "Producer ID"
// @Param product body product.Spec true "Product"
// @Success 201
// @Failure 409
// @Router /producers/{id}/products [post]
func publishHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "publishHandler")
	defer span.End()

	id, ok := producerID(w, r)
	if !ok {
		return
	}
	p, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	published, err := mkt.Publish(id, p)
	if errors.Is(err, market.ErrUnknownProducer) {
		http.NotFound(w, r)
		return
	}
	mx.ObservePublish(published)
	if !published {
		log.Debug(ctx, "queue full", "producer_id", int(id))
		http.Error(w, "queue full", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// getCartHandler lists the caller's cart.
// @Summary Get cart
// @Produce json
// @Success 200 {object} cartResponse
// @Security ApiKeyAuth
// @Router /cart [get]
func getCartHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	items, err := mkt.PlaceOrder(sess.Cart)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{ID: int(sess.Cart), Buyer: sess.Buyer, Items: specs(items)})
}

// addItemHandler moves one unit from any producer into the cart.
// @Summary Add to cart
// @Description Returns 409 when no producer has the product; retry later.
// @Accept json
// @Param product body product.Spec true "Product"
// @Success 201
// @Failure 409
// @Security ApiKeyAuth
// @Router /cart/items [post]
func addItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "addItemHandler")
	defer span.End()

	p, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	sess := sessionFrom(ctx)
	added, err := mkt.AddToCart(sess.Cart, p)
	if err != nil {
		log.Error(ctx, "add to cart", "error", err)
		http.NotFound(w, r)
		return
	}
	mx.ObserveAdd(added)
	if !added {
		http.Error(w, "product unavailable", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// removeItemHandler returns one unit from the cart to its producer.
// @Summary Remove from cart
// @Accept json
// @Param product body product.Spec true "Product"
// @Success 204
// @Failure 404
// @Security ApiKeyAuth
// @Router /cart/items [delete]
func removeItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "removeItemHandler")
	defer span.End()

	p, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	sess := sessionFrom(ctx)
	removed, err := mkt.RemoveFromCart(sess.Cart, p)
	if err != nil {
		log.Error(ctx, "remove from cart", "error", err)
		http.NotFound(w, r)
		return
	}
	mx.ObserveRemove(removed)
	if !removed {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// placeOrderHandler places the cart's order and ends the session.
// @Summary Place order
// @Produce json
// @Success 201 {object} order.Order
// @Failure 409
// @Security ApiKeyAuth
// @Router /cart/order [post]
func placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "placeOrderHandler")
	defer span.End()

	sess := sessionFrom(ctx)
	var o order.Order
	err := mkt.Checkout(sess.Cart, func(items []product.Product) {
		names := make([]string, 0, len(items))
		for _, it := range items {
			names = append(names, it.String())
		}
		o = order.New(sess.Buyer, int(sess.Cart), names)
		log.Info(ctx, "order placed", "order_id", o.ID, "buyer", o.Buyer, "items", o.Items)
	})
	if err != nil {
		log.Error(ctx, "checkout", "error", err)
		http.NotFound(w, r)
		return
	}
	guards.close(sess.Cart)
	if err := ledger.Create(ctx, o); err != nil {
		log.Error(ctx, "record order", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	mx.ObserveOrder(len(o.Items))
	if err := sessions.end(ctx, sess.ID); err != nil {
		log.Warn(ctx, "end session", "error", err)
	}
	writeJSON(w, http.StatusCreated, o)
}

// listOrdersHandler lists placed orders.
// @Summary List orders
// @Produce json
// @Success 200 {array} order.Order
// @Router /orders [get]
func listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listOrdersHandler")
	defer span.End()

	orders, err := ledger.List(ctx)
	if err != nil {
		log.Error(ctx, "list orders", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// getOrderHandler retrieves a placed order by ID.
// @Summary Get order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} order.Order
// @Router /orders/{id} [get]
func getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getOrderHandler")
	defer span.End()

	o, err := ledger.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error(ctx, "get order", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// deleteOrderHandler removes an order from the ledger.
// @Summary Delete order
// @Param id path string true "Order ID"
// @Success 204
// @Failure 404
// @Router /orders/{id} [delete]
func deleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "deleteOrderHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	if err := ledger.Delete(ctx, id); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error(ctx, "delete order", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Info(ctx, "order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func producerID(w http.ResponseWriter, r *http.Request) (market.ProducerID, bool) {
	n, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid producer id", http.StatusBadRequest)
		return 0, false
	}
	return market.ProducerID(n), true
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (product.Product, bool) {
	var spec product.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	p, err := spec.Build()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return p, true
}

func specs(items []product.Product) []product.Spec {
	out := make([]product.Spec, 0, len(items))
	for _, it := range items {
		out = append(out, product.SpecOf(it))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
