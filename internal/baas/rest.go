package baas

import (
	"context"
	"net/http"
	"net/url"
)

// Select reads rows from table. order is a PostgREST order clause such as
// "created_at.desc".
func (c *Client) Select(ctx context.Context, table, order string, out interface{}) error {
	query := url.Values{}
	query.Set("select", "*")
	if order != "" {
		query.Set("order", order)
	}
	return c.do(ctx, requestOptions{
		method: http.MethodGet,
		path:   "/rest/v1/" + table,
		query:  query,
	}, out)
}

// Insert writes rows and decodes the inserted representation into out.
func (c *Client) Insert(ctx context.Context, table string, rows interface{}, out interface{}) error {
	return c.do(ctx, requestOptions{
		method: http.MethodPost,
		path:   "/rest/v1/" + table,
		body:   rows,
		prefer: "return=representation",
	}, out)
}

// DeleteEq removes rows where column equals value and reports how many rows
// the backend says it removed.
func (c *Client) DeleteEq(ctx context.Context, table, column, value string) (int, error) {
	query := url.Values{}
	query.Set(column, "eq."+value)

	var deleted []map[string]interface{}
	err := c.do(ctx, requestOptions{
		method: http.MethodDelete,
		path:   "/rest/v1/" + table,
		query:  query,
		prefer: "return=representation",
	}, &deleted)
	if err != nil {
		return 0, err
	}
	return len(deleted), nil
}
