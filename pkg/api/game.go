package api

type (
	InitGameRequest struct {
		PlayerName string `json:"player_name"`
		TotalTime  int    `json:"total_time"`
		Increment  int    `json:"increment"`
	}
	CreateGameRequest = InitGameRequest
	JoinGameRequest   struct {
		PlayerName string `json:"player_name"`
		GameId     string `json:"game_id"`
	}
	ReconnectRequest = JoinGameRequest
	MoveRequest      struct {
		GameId string `json:"game_id"`
		Move   string `json:"move"`
	}
	TimeoutNotice struct {
		GameId string `json:"game_id"`
		Winner string `json:"winner"`
	}
)

type (
	GameStartedResponse struct {
		Opponent string `json:"opponent"`
		GameId   string `json:"game_id"`
	}
	GameCreatedResponse struct {
		Message string `json:"message"`
		GameId  string `json:"game_id"`
	}
	GameStateResponse struct {
		Moves  []string `json:"moves,omitempty"`
		Turn   string   `json:"turn,omitempty"`
		Status string   `json:"status,omitempty"`
		GameId string   `json:"game_id,omitempty"`
		Time   Clocks   `json:"time,omitempty"`
	}
	ReconnectedResponse struct {
		PlayerName string `json:"player_name,omitempty"`
		GameStateResponse
	}
	MoveResponse struct {
		Move   string `json:"move"`
		Turn   string `json:"turn"`
		GameId string `json:"game_id,omitempty"`
		Time   Clocks `json:"time,omitempty"`
	}
	GameOverResponse struct {
		Status  string `json:"status,omitempty"`
		Winner  string `json:"winner"`
		Message string `json:"message,omitempty"`
	}
	MessageResponse struct {
		Message    string `json:"message"`
		PlayerName string `json:"player_name,omitempty"`
	}
)

// StatusOngoing is the server status of a game in progress.
const StatusOngoing = "ongoing"

// HasSnapshot tells if a reconnect notice carries the full game state.
func (r ReconnectedResponse) HasSnapshot() bool { return r.Moves != nil || r.Turn != "" }
