package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Safeguard MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolLogPurchase = mcp.NewTool("log_purchase",
	mcp.WithDescription(
		"Record an alcohol sale for a registered person. "+
			"Runs the full compliance workflow: the sale is rejected if the person "+
			"is blocked or would exceed the daily unit limit, and the person's risk "+
			"score is updated afterwards. Provide either explicit units, or volume "+
			"and ABV so the units can be derived."),
	mcp.WithString("person_id",
		mcp.Required(),
		mcp.Description("The person's ID (e.g. 'per_...')")),
	mcp.WithString("shop_id",
		mcp.Required(),
		mcp.Description("The selling shop's identifier")),
	mcp.WithString("kind",
		mcp.Required(),
		mcp.Description("Beverage kind (e.g. 'whisky', 'beer', 'rum')")),
	mcp.WithNumber("volume_ml",
		mcp.Description("Container volume in millilitres (e.g. 750)")),
	mcp.WithNumber("abv_percent",
		mcp.Description("Alcohol strength as a percentage (e.g. 42.8)")),
	mcp.WithNumber("units",
		mcp.Description("Explicit standard-drink units. Overrides derivation from volume and ABV.")),
)

var ToolGetPersonRisk = mcp.NewTool("get_person_risk",
	mcp.WithDescription(
		"Get a person's current risk evaluation: score (0-100), tier "+
			"(Green/Yellow/Red), and the contributing factors. The score is "+
			"recomputed fresh from purchase history, incidents, and pattern findings."),
	mcp.WithString("person_id",
		mcp.Required(),
		mcp.Description("The person's ID (e.g. 'per_...')")),
)

var ToolListAlerts = mcp.NewTool("list_alerts",
	mcp.WithDescription(
		"List compliance alerts: daily limit breaches, risk tier changes, and "+
			"detected behavior patterns. By default shows only unacknowledged alerts."),
	mcp.WithBoolean("include_acknowledged",
		mcp.Description("Include alerts a reviewer has already acknowledged (default false)")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of alerts to return (default 20)")),
)

var ToolGetDashboardStats = mcp.NewTool("get_dashboard_stats",
	mcp.WithDescription(
		"Get the monitoring overview: persons per risk tier, today's purchase "+
			"volume, and the open review workload (unacknowledged alerts and "+
			"unreviewed pattern findings)."),
)

var ToolListHighRisk = mcp.NewTool("list_high_risk",
	mcp.WithDescription(
		"List Red-tier persons ordered by risk score, highest first. "+
			"These are the people a reviewer should look at next."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of persons to return (default 20)")),
)

var ToolBlockPerson = mcp.NewTool("block_person",
	mcp.WithDescription(
		"Block a person from making further purchases, or lift an existing "+
			"block. Blocking is an administrative hold: all purchase attempts "+
			"are rejected until the person is unblocked."),
	mcp.WithString("person_id",
		mcp.Required(),
		mcp.Description("The person's ID (e.g. 'per_...')")),
	mcp.WithBoolean("unblock",
		mcp.Description("Set true to lift the block instead of applying one")),
)
