package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the advisory MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAssessTransaction = mcp.NewTool("assess_transaction",
	mcp.WithDescription(
		"Run a full advisory assessment for a proposed cross-border delivery transaction. "+
			"Returns trust scores for both parties, a risk assessment, corridor support, "+
			"and an advisory recommendation (PROCEED, CAUTION, or MANUAL_REVIEW). "+
			"All outputs are advisory only and never execute anything."),
	mcp.WithString("traveler_id",
		mcp.Required(),
		mcp.Description("The traveler's user ID")),
	mcp.WithString("buyer_id",
		mcp.Required(),
		mcp.Description("The buyer's user ID")),
	mcp.WithString("origin",
		mcp.Required(),
		mcp.Description("Two-letter origin country code (e.g. 'US')")),
	mcp.WithString("destination",
		mcp.Required(),
		mcp.Description("Two-letter destination country code (e.g. 'EG')")),
	mcp.WithNumber("item_value",
		mcp.Required(),
		mcp.Description("Declared item value in the given currency")),
	mcp.WithString("currency",
		mcp.Description("Three-letter currency code (default 'USD')")),
	mcp.WithString("item_category",
		mcp.Description("Item category (e.g. 'electronics', 'books', 'medications')")),
	mcp.WithNumber("delivery_days",
		mcp.Description("Promised delivery window in days")),
)

var ToolGetTrustScore = mcp.NewTool("get_trust_score",
	mcp.WithDescription(
		"Compute the trust score for a single marketplace user. "+
			"Returns a 0-100 score, a trust level (VERY_LOW to VERY_HIGH), and the weighted factors behind it."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user's ID")),
	mcp.WithString("role",
		mcp.Required(),
		mcp.Description("The user's marketplace role"),
		mcp.Enum("BUYER", "TRAVELER")),
)

var ToolClassifyIntent = mcp.NewTool("classify_intent",
	mcp.WithDescription(
		"Classify a user's browsing context into a marketplace intent "+
			"(BUY, REQUEST, TRAVEL, BROWSE, or UNKNOWN) with a confidence score."),
	mcp.WithString("page_context",
		mcp.Description("The page the user is on (e.g. '/request/create', '/matches')")),
	mcp.WithString("action",
		mcp.Description("The user's action (e.g. 'submit_request', 'accept_offer', 'view_only')")),
	mcp.WithString("user_role",
		mcp.Description("The user's role ('buyer' or 'traveler')")),
)

var ToolListCorridors = mcp.NewTool("list_corridors",
	mcp.WithDescription(
		"List the delivery corridors the advisory engine supports, with their "+
			"value limits, restricted item categories, and risk multipliers."),
)

var ToolGetCorridorVolume = mcp.NewTool("get_corridor_volume",
	mcp.WithDescription(
		"Check today's transaction volume for a corridor against its daily caps. "+
			"Shows USD volume used, transaction count, and remaining headroom."),
	mcp.WithString("corridor_id",
		mcp.Required(),
		mcp.Description("The corridor ID in ORIGIN_DEST form (e.g. 'US_EG')")),
)

var ToolGetAuditLogs = mcp.NewTool("get_audit_logs",
	mcp.WithDescription(
		"Read recent advisory audit entries. Each entry records one operation "+
			"with its sanitized input, output, and processing time."),
	mcp.WithString("operation",
		mcp.Description("Filter by operation name (e.g. 'assess', 'trust_score', 'classify_intent')")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 20)")),
)

var ToolGetDecisionSnapshot = mcp.NewTool("get_decision_snapshot",
	mcp.WithDescription(
		"Fetch the stored decision snapshot for a past assessment by request ID. "+
			"Shows the recommendation, risk score, and trust levels as computed at the time."),
	mcp.WithString("request_id",
		mcp.Required(),
		mcp.Description("The request ID from a previous assess_transaction result")),
)
