package model

// NodeType identifies one of the fixed node categories a flow author can
// place on the canvas. The set is closed; unknown values classify as
// CategoryUnknown and never reach a handler.
type NodeType string

const (
	// Message nodes - each renders one outbound content shape.
	NodeTypeText              NodeType = "TEXT"
	NodeTypeImage             NodeType = "IMAGE"
	NodeTypeVideo             NodeType = "VIDEO"
	NodeTypeAudio             NodeType = "AUDIO"
	NodeTypeDocument          NodeType = "DOCUMENT"
	NodeTypeLocation          NodeType = "LOCATION"
	NodeTypeInteractiveList   NodeType = "INTERACTIVE_LIST"
	NodeTypeInteractiveButton NodeType = "INTERACTIVE_BUTTON"

	// Tool nodes - side effects and control flow.
	NodeTypeAssignAgent NodeType = "ASSIGN_AGENT"
	NodeTypeTakeInput   NodeType = "TAKE_INPUT"
	NodeTypeSaveAsVar   NodeType = "SAVE_AS_VAR"
	NodeTypeSpreadsheet NodeType = "SPREADSHEET"
	NodeTypeDisableChat NodeType = "DISABLE_CHAT"
	NodeTypeMakeRequest NodeType = "MAKE_REQUEST"
	NodeTypeCondition   NodeType = "CONDITION"

	// Addon nodes.
	NodeTypeAI NodeType = "AI_REPLY"
)

// Category groups node types into the three disjoint handler families.
type Category string

const (
	CategoryMessage Category = "message"
	CategoryTool    Category = "tool"
	CategoryAddon   Category = "addon"
	CategoryUnknown Category = ""
)

var nodeCategories = map[NodeType]Category{
	NodeTypeText:              CategoryMessage,
	NodeTypeImage:             CategoryMessage,
	NodeTypeVideo:             CategoryMessage,
	NodeTypeAudio:             CategoryMessage,
	NodeTypeDocument:          CategoryMessage,
	NodeTypeLocation:          CategoryMessage,
	NodeTypeInteractiveList:   CategoryMessage,
	NodeTypeInteractiveButton: CategoryMessage,
	NodeTypeAssignAgent:       CategoryTool,
	NodeTypeTakeInput:         CategoryTool,
	NodeTypeSaveAsVar:         CategoryTool,
	NodeTypeSpreadsheet:       CategoryTool,
	NodeTypeDisableChat:       CategoryTool,
	NodeTypeMakeRequest:       CategoryTool,
	NodeTypeCondition:         CategoryTool,
	NodeTypeAI:                CategoryAddon,
}

// Category returns the handler family for the node type. Classification is a
// static lookup; a type never belongs to more than one family.
func (t NodeType) Category() Category {
	return nodeCategories[t]
}

type (
	// NodeData carries the author-supplied configuration of a node. Fields are
	// sparse - each node type reads only the subset it documents.
	NodeData struct {
		// MsgContent is the outbound content object of message nodes, keyed by
		// content kind (text, image, interactive, ...). The dispatcher may
		// replace it with a variable-resolved copy before a handler runs.
		MsgContent map[string]interface{} `json:"msgContent,omitempty" yaml:"msgContent,omitempty"`

		// StringValue holds the comparison template of CONDITION nodes and the
		// dotted source path of SAVE_AS_VAR nodes.
		StringValue string `json:"stringValue,omitempty" yaml:"stringValue,omitempty"`

		// VariableName names the variable a TAKE_INPUT node captures.
		VariableName string `json:"variableName,omitempty" yaml:"variableName,omitempty"`

		// KeyToSave names the variable a SAVE_AS_VAR node stores into.
		KeyToSave string `json:"keyToSave,omitempty" yaml:"keyToSave,omitempty"`

		// DISABLE_CHAT window, relative to now unless Timestamp is set.
		Hours     int   `json:"hours,omitempty" yaml:"hours,omitempty"`
		Minutes   int   `json:"minutes,omitempty" yaml:"minutes,omitempty"`
		Timestamp int64 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
		Timezone  string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

		// AgentEmail identifies the human agent of ASSIGN_AGENT nodes.
		AgentEmail string `json:"agentEmail,omitempty" yaml:"agentEmail,omitempty"`

		// CaseSensitive toggles exact-case comparison on CONDITION nodes.
		CaseSensitive bool `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`

		// AssignAI marks a node that pins the sender's conversation to AI
		// handling until the flow un-assigns it.
		AssignAI bool `json:"assignAi,omitempty" yaml:"assignAi,omitempty"`

		// AI_REPLY configuration.
		Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
		Instruction string   `json:"instruction,omitempty" yaml:"instruction,omitempty"`
		Tasks       []string `json:"tasks,omitempty" yaml:"tasks,omitempty"`

		// TaskName/TaskDescription expose a node as a callable function to
		// AI_REPLY nodes that list its id under Tasks.
		TaskName        string `json:"taskName,omitempty" yaml:"taskName,omitempty"`
		TaskDescription string `json:"taskDescription,omitempty" yaml:"taskDescription,omitempty"`

		// MAKE_REQUEST configuration.
		Method    string            `json:"method,omitempty" yaml:"method,omitempty"`
		URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
		Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
		Body      interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
		MsgLength int               `json:"msglength,omitempty" yaml:"msglength,omitempty"`

		// SPREADSHEET configuration; all five are required for the push to run.
		AuthURL   string      `json:"authUrl,omitempty" yaml:"authUrl,omitempty"`
		AuthLabel string      `json:"authLabel,omitempty" yaml:"authLabel,omitempty"`
		JSONData  interface{} `json:"jsonData,omitempty" yaml:"jsonData,omitempty"`
		SheetName string      `json:"sheetName,omitempty" yaml:"sheetName,omitempty"`
		SheetID   string      `json:"sheetId,omitempty" yaml:"sheetId,omitempty"`
	}

	// Node is one step in a flow. Identity is the ID, unique within the flow.
	Node struct {
		ID   string   `json:"id" yaml:"id"`
		Type NodeType `json:"type" yaml:"type"`
		Data NodeData `json:"data,omitempty" yaml:"data,omitempty"`
	}

	// Edge is a directed link between two nodes. SourceHandle disambiguates
	// multiple outgoing paths from one decision point: condition branches, AI
	// function names and entry keywords.
	Edge struct {
		Source       string `json:"source" yaml:"source"`
		Target       string `json:"target" yaml:"target"`
		SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	}
)

// Category returns the handler family of the node.
func (n *Node) Category() Category {
	if n == nil {
		return CategoryUnknown
	}
	return n.Type.Category()
}

// Clone returns a deep-enough copy for per-dispatch mutation: the dispatcher
// substitutes resolved message content without touching the shared flow graph.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	if n.Data.MsgContent != nil {
		content := make(map[string]interface{}, len(n.Data.MsgContent))
		for k, v := range n.Data.MsgContent {
			content[k] = v
		}
		clone.Data.MsgContent = content
	}
	if n.Data.Tasks != nil {
		clone.Data.Tasks = append([]string(nil), n.Data.Tasks...)
	}
	if n.Data.Headers != nil {
		headers := make(map[string]string, len(n.Data.Headers))
		for k, v := range n.Data.Headers {
			headers[k] = v
		}
		clone.Data.Headers = headers
	}
	return &clone
}
