package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var tokenFlag string

func newClient() *resty.Client {
	c := resty.New().
		SetBaseURL(apiFlag).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	if tokenFlag != "" {
		c.SetAuthToken(tokenFlag)
	}
	return c
}

// printJSON indents the body of a successful response onto the command's output.
func printJSON(cmd *cobra.Command, resp *resty.Response, err error, want int) error {
	if err != nil {
		return err
	}
	if resp.StatusCode() != want {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Body(), "", "  "); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(cmd.OutOrStdout())
	return err
}

func addToken(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tokenFlag, "token", "", "Bearer token forwarded to the REST backend")
}

func newGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups USER_ID",
		Short: "List a user's (day, place) groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().R().
				SetContext(cmd.Context()).
				SetPathParam("userId", args[0]).
				Get("/api/users/{userId}/crossed-paths/groups")
			return printJSON(cmd, resp, err, http.StatusOK)
		},
	}
	addToken(cmd)
	return cmd
}

func newPeopleCmd() *cobra.Command {
	var limit int
	var cursor string
	cmd := &cobra.Command{
		Use:   "people USER_ID DAY_KEY PLACE_KEY",
		Short: "List one page of the people in a group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := newClient().R().
				SetContext(cmd.Context()).
				SetPathParams(map[string]string{"userId": args[0], "dayKey": args[1], "placeKey": args[2]})
			if limit > 0 {
				req.SetQueryParam("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				req.SetQueryParam("cursor", cursor)
			}
			resp, err := req.Get("/api/users/{userId}/crossed-paths/groups/{dayKey}/{placeKey}/people")
			return printJSON(cmd, resp, err, http.StatusOK)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Page size (server default when 0)")
	cmd.Flags().StringVarP(&cursor, "cursor", "c", "", "next_cursor of the previous page")
	addToken(cmd)
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var perGroup int
	cmd := &cobra.Command{
		Use:   "history USER_ID",
		Short: "List groups with the first page of people of each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := newClient().R().SetContext(cmd.Context()).SetPathParam("userId", args[0])
			if perGroup > 0 {
				req.SetQueryParam("per_group", strconv.Itoa(perGroup))
			}
			resp, err := req.Get("/api/users/{userId}/crossed-paths/history")
			return printJSON(cmd, resp, err, http.StatusOK)
		},
	}
	cmd.Flags().IntVarP(&perGroup, "per-group", "n", 0, "People per group (server default when 0)")
	addToken(cmd)
	return cmd
}

func newVisitCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "visit USER_ID",
		Short: "Record a visit at a labelled place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if label == "" {
				return fmt.Errorf("--label required")
			}
			resp, err := newClient().R().
				SetContext(cmd.Context()).
				SetPathParam("userId", args[0]).
				SetBody(map[string]interface{}{"address_label": label}).
				Post("/api/users/{userId}/visits")
			return printJSON(cmd, resp, err, http.StatusAccepted)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Address label (required)")
	addToken(cmd)
	return cmd
}
