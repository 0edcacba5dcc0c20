package memstore

import "github.com/erauner12/hubmirror/internal/model"

// cp re-points one optional field so staged rows never alias caller memory.
func cp[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneReplication(r model.Replication) model.Replication {
	r.LastReplicatedViaWebhookAt = cp(r.LastReplicatedViaWebhookAt)
	r.LastReplicatedViaAPIAt = cp(r.LastReplicatedViaAPIAt)
	return r
}

func cloneUser(u model.User) model.User {
	u.Replication = cloneReplication(u.Replication)
	u.SiteAdmin = cp(u.SiteAdmin)
	u.Name = cp(u.Name)
	u.Company = cp(u.Company)
	u.Blog = cp(u.Blog)
	u.Location = cp(u.Location)
	u.Email = cp(u.Email)
	u.Hireable = cp(u.Hireable)
	u.Bio = cp(u.Bio)
	u.PublicReposCount = cp(u.PublicReposCount)
	u.PublicGistsCount = cp(u.PublicGistsCount)
	u.FollowersCount = cp(u.FollowersCount)
	u.FollowingCount = cp(u.FollowingCount)
	u.CreatedAt = cp(u.CreatedAt)
	u.UpdatedAt = cp(u.UpdatedAt)
	u.ReposLastScannedAt = cp(u.ReposLastScannedAt)
	return u
}

func cloneRepo(r model.Repository) model.Repository {
	r.Replication = cloneReplication(r.Replication)
	r.OwnerID = cp(r.OwnerID)
	r.OwnerLogin = cp(r.OwnerLogin)
	r.OrganizationID = cp(r.OrganizationID)
	r.OrganizationLogin = cp(r.OrganizationLogin)
	r.Private = cp(r.Private)
	r.Description = cp(r.Description)
	r.Fork = cp(r.Fork)
	r.Homepage = cp(r.Homepage)
	r.Language = cp(r.Language)
	r.DefaultBranch = cp(r.DefaultBranch)
	r.Size = cp(r.Size)
	r.StargazersCount = cp(r.StargazersCount)
	r.WatchersCount = cp(r.WatchersCount)
	r.ForksCount = cp(r.ForksCount)
	r.OpenIssuesCount = cp(r.OpenIssuesCount)
	r.HasIssues = cp(r.HasIssues)
	r.HasDownloads = cp(r.HasDownloads)
	r.HasWiki = cp(r.HasWiki)
	r.HasPages = cp(r.HasPages)
	r.CreatedAt = cp(r.CreatedAt)
	r.UpdatedAt = cp(r.UpdatedAt)
	r.PushedAt = cp(r.PushedAt)
	r.HooksLastScannedAt = cp(r.HooksLastScannedAt)
	r.LabelsLastScannedAt = cp(r.LabelsLastScannedAt)
	r.MilestonesLastScannedAt = cp(r.MilestonesLastScannedAt)
	r.IssuesLastScannedAt = cp(r.IssuesLastScannedAt)
	r.PullRequestsLastScannedAt = cp(r.PullRequestsLastScannedAt)
	return r
}

func cloneAssoc(a model.UserRepoAssociation) model.UserRepoAssociation {
	return a
}

func cloneHook(h model.RepositoryHook) model.RepositoryHook {
	h.Replication = cloneReplication(h.Replication)
	h.RepoID = cp(h.RepoID)
	h.Name = cp(h.Name)
	h.URL = cp(h.URL)
	h.Active = cp(h.Active)
	h.CreatedAt = cp(h.CreatedAt)
	h.UpdatedAt = cp(h.UpdatedAt)
	if h.Events != nil {
		h.Events = append([]string(nil), h.Events...)
	}
	if h.Config != nil {
		m := make(map[string]any, len(h.Config))
		for k, v := range h.Config {
			m[k] = v
		}
		h.Config = m
	}
	if h.LastResponse != nil {
		m := make(map[string]any, len(h.LastResponse))
		for k, v := range h.LastResponse {
			m[k] = v
		}
		h.LastResponse = m
	}
	return h
}

func cloneMilestone(m model.Milestone) model.Milestone {
	m.Replication = cloneReplication(m.Replication)
	m.State = cp(m.State)
	m.Title = cp(m.Title)
	m.Description = cp(m.Description)
	m.CreatorID = cp(m.CreatorID)
	m.CreatorLogin = cp(m.CreatorLogin)
	m.OpenIssuesCount = cp(m.OpenIssuesCount)
	m.ClosedIssuesCount = cp(m.ClosedIssuesCount)
	m.CreatedAt = cp(m.CreatedAt)
	m.UpdatedAt = cp(m.UpdatedAt)
	m.ClosedAt = cp(m.ClosedAt)
	m.DueAt = cp(m.DueAt)
	return m
}

func cloneLabel(l model.IssueLabel) model.IssueLabel {
	l.Replication = cloneReplication(l.Replication)
	l.Color = cp(l.Color)
	return l
}

func cloneIssue(i model.Issue) model.Issue {
	i.Replication = cloneReplication(i.Replication)
	i.RepoID = cp(i.RepoID)
	i.Number = cp(i.Number)
	i.State = cp(i.State)
	i.Title = cp(i.Title)
	i.Body = cp(i.Body)
	i.UserID = cp(i.UserID)
	i.UserLogin = cp(i.UserLogin)
	i.AssigneeID = cp(i.AssigneeID)
	i.AssigneeLogin = cp(i.AssigneeLogin)
	i.ClosedByID = cp(i.ClosedByID)
	i.ClosedByLogin = cp(i.ClosedByLogin)
	i.MilestoneNumber = cp(i.MilestoneNumber)
	i.CommentsCount = cp(i.CommentsCount)
	i.CreatedAt = cp(i.CreatedAt)
	i.UpdatedAt = cp(i.UpdatedAt)
	i.ClosedAt = cp(i.ClosedAt)
	return i
}

func clonePull(p model.PullRequest) model.PullRequest {
	p.Replication = cloneReplication(p.Replication)
	p.Number = cp(p.Number)
	p.State = cp(p.State)
	p.Locked = cp(p.Locked)
	p.Title = cp(p.Title)
	p.Body = cp(p.Body)
	p.UserID = cp(p.UserID)
	p.UserLogin = cp(p.UserLogin)
	p.AssigneeID = cp(p.AssigneeID)
	p.AssigneeLogin = cp(p.AssigneeLogin)
	p.MergedByID = cp(p.MergedByID)
	p.MergedByLogin = cp(p.MergedByLogin)
	p.BaseRepoID = cp(p.BaseRepoID)
	p.BaseRef = cp(p.BaseRef)
	p.HeadRepoID = cp(p.HeadRepoID)
	p.HeadRef = cp(p.HeadRef)
	p.MilestoneNumber = cp(p.MilestoneNumber)
	p.Merged = cp(p.Merged)
	p.Mergeable = cp(p.Mergeable)
	p.MergeableState = cp(p.MergeableState)
	p.CommentsCount = cp(p.CommentsCount)
	p.ReviewCommentsCount = cp(p.ReviewCommentsCount)
	p.CommitsCount = cp(p.CommitsCount)
	p.Additions = cp(p.Additions)
	p.Deletions = cp(p.Deletions)
	p.ChangedFiles = cp(p.ChangedFiles)
	p.CreatedAt = cp(p.CreatedAt)
	p.UpdatedAt = cp(p.UpdatedAt)
	p.ClosedAt = cp(p.ClosedAt)
	p.MergedAt = cp(p.MergedAt)
	p.FilesLastScannedAt = cp(p.FilesLastScannedAt)
	return p
}

func cloneFile(f model.PullRequestFile) model.PullRequestFile {
	f.Replication = cloneReplication(f.Replication)
	f.Filename = cp(f.Filename)
	f.Status = cp(f.Status)
	f.Additions = cp(f.Additions)
	f.Deletions = cp(f.Deletions)
	f.Changes = cp(f.Changes)
	f.Patch = cp(f.Patch)
	return f
}
