package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wabridge/whatsapp-mcp/services"
	"github.com/wabridge/whatsapp-mcp/session"
)

// NewMCPServer creates a new MCP server with the full WhatsApp tool
// catalog. The catalog is built once here and never mutated.
func NewMCPServer(name string, version string, sessions *session.Manager, service *services.Service) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
	)

	h := &handlers{sessions: sessions, service: service}

	createSessionTool := mcp.NewTool("create_session",
		mcp.WithDescription("Create a new WhatsApp session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("ID for the session"),
		),
	)

	getQRCodeTool := mcp.NewTool("get_qr_code",
		mcp.WithDescription("Get a QR code for authentication. Returns a base64 PNG image and the raw code payload"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
	)

	authenticateTool := mcp.NewTool("authenticate",
		mcp.WithDescription("Authenticate a session after its QR code has been scanned on the device"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithString("qr_code",
			mcp.Required(),
			mcp.Description("The raw QR code payload that was scanned"),
		),
	)

	logoutTool := mcp.NewTool("logout",
		mcp.WithDescription("Logout from a session and remove its persisted state"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
	)

	restoreSessionTool := mcp.NewTool("restore_session",
		mcp.WithDescription("Restore a previously authenticated session from its persisted state"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("ID of the session to restore"),
		),
	)

	checkStatusTool := mcp.NewTool("check_status",
		mcp.WithDescription("Get the live provider status of a session"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
	)

	sendMessageTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send a WhatsApp message to a chat. The content object carries exactly one variant, discriminated by its 'type' field: text, image, document, audio, video, sticker, location, contact, buttons, list or poll"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithString("chat_id",
			mcp.Required(),
			mcp.Description("The WhatsApp ID of the chat to send the message to (e.g. '123456789@c.us' or a group like '123456789@g.us')"),
		),
		mcp.WithObject("content",
			mcp.Required(),
			mcp.Description("The content of the message to send"),
		),
		mcp.WithString("reply_to",
			mcp.Description("ID of the message to reply to"),
		),
	)

	getChatsTool := mcp.NewTool("get_chats",
		mcp.WithDescription("Get a list of chats"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of chats to return (default 50)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Offset for pagination (default 0)"),
		),
	)

	getMessagesTool := mcp.NewTool("get_messages",
		mcp.WithDescription("Get messages from a chat, newest first"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithString("chat_id",
			mcp.Required(),
			mcp.Description("The WhatsApp ID of the chat"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of messages to return (default 50)"),
		),
		mcp.WithString("before_message_id",
			mcp.Description("Only return messages before this message ID"),
		),
	)

	createGroupTool := mcp.NewTool("create_group",
		mcp.WithDescription("Create a new WhatsApp group"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithString("group_name",
			mcp.Required(),
			mcp.Description("Name of the group to create"),
		),
		mcp.WithArray("participants",
			mcp.Required(),
			mcp.Description("List of participant phone numbers"),
		),
	)

	getGroupParticipantsTool := mcp.NewTool("get_group_participants",
		mcp.WithDescription("Get the participants of a WhatsApp group"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithString("group_id",
			mcp.Required(),
			mcp.Description("The WhatsApp ID of the group (must end with @g.us)"),
		),
	)

	addParticipantTool := mcp.NewTool("add_participant",
		mcp.WithDescription("Add a participant to a WhatsApp group"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithString("group_id",
			mcp.Required(),
			mcp.Description("The WhatsApp ID of the group (must end with @g.us)"),
		),
		mcp.WithString("participant_id",
			mcp.Required(),
			mcp.Description("The WhatsApp ID of the participant (must end with @c.us)"),
		),
	)

	removeParticipantTool := mcp.NewTool("remove_participant",
		mcp.WithDescription("Remove a participant from a WhatsApp group"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithString("group_id",
			mcp.Required(),
			mcp.Description("The WhatsApp ID of the group (must end with @g.us)"),
		),
		mcp.WithString("participant_id",
			mcp.Required(),
			mcp.Description("The WhatsApp ID of the participant (must end with @c.us)"),
		),
	)

	updateGroupSettingsTool := mcp.NewTool("update_group_settings",
		mcp.WithDescription("Update the name and/or description of a WhatsApp group"),
		mcp.WithString("session_id",
			mcp.Description("ID of the session (defaults to the most recently created one)"),
		),
		mcp.WithString("group_id",
			mcp.Required(),
			mcp.Description("The WhatsApp ID of the group (must end with @g.us)"),
		),
		mcp.WithString("name",
			mcp.Description("New group name"),
		),
		mcp.WithString("description",
			mcp.Description("New group description"),
		),
	)

	s.AddTool(createSessionTool, h.createSession)
	s.AddTool(getQRCodeTool, h.getQRCode)
	s.AddTool(authenticateTool, h.authenticate)
	s.AddTool(logoutTool, h.logout)
	s.AddTool(restoreSessionTool, h.restoreSession)
	s.AddTool(checkStatusTool, h.checkStatus)
	s.AddTool(sendMessageTool, h.sendMessage)
	s.AddTool(getChatsTool, h.getChats)
	s.AddTool(getMessagesTool, h.getMessages)
	s.AddTool(createGroupTool, h.createGroup)
	s.AddTool(getGroupParticipantsTool, h.getGroupParticipants)
	s.AddTool(addParticipantTool, h.addParticipant)
	s.AddTool(removeParticipantTool, h.removeParticipant)
	s.AddTool(updateGroupSettingsTool, h.updateGroupSettings)

	return s
}

// StartMCPServer starts the MCP server on stdio
func StartMCPServer(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
