package types

type RegisterRequest struct {
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required,min=8"`
    Name     string `json:"name" validate:"required"`
}

type LoginRequest struct {
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required"`
}

type DeploymentCreateRequest struct {
    Requirement string `json:"requirement" validate:"required,min=10,max=4000"`
}

type CredentialsRequest struct {
    GitHubToken     string `json:"github_token"`
    GitHubUsername  string `json:"github_username"`
    VercelToken     string `json:"vercel_token"`
    VercelTeamID    string `json:"vercel_team_id"`
    SupabaseURL     string `json:"supabase_url" validate:"omitempty,url"`
    SupabaseAnonKey string `json:"supabase_anon_key"`
}

type ChatRequest struct {
    Message string `json:"message" validate:"required,max=4000"`
}
