/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

const (
	DefaultPageSize = 15
	DefaultPageName = "page"
)

// PageRequest describes which page to load, how many rows it holds, the
// parameter name the page number travels under and the selected columns.
type PageRequest struct {
	page     int
	pageSize int
	pageName string
	columns  []string
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = DefaultPageSize
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

// HasPage reports whether a page number was set explicitly.
func (p *PageRequest) HasPage() bool {
	return p.page > 0
}

// SetPage replaces the page number, typically with the value read from the
// request parameter named by GetPageName.
func (p *PageRequest) SetPage(page int) *PageRequest {
	p.page = page
	return p
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetPageName() string {
	if p.pageName == "" {
		p.pageName = DefaultPageName
	}
	return p.pageName
}

func (p *PageRequest) GetColumns() []string {
	return p.columns
}

// NewPageRequest constructs a PageRequest. Zero values fall back to page 1,
// DefaultPageSize rows and DefaultPageName.
func NewPageRequest(page int, pageSize int, pageName string, columns []string) *PageRequest {
	return &PageRequest{page, pageSize, pageName, columns}
}

// NewDefaultPageRequest constructs a PageRequest selecting every column.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, DefaultPageName, nil)
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	LastPage int
	PageName string
	Items    []*T
}

// HasMorePages reports whether a page after the current one exists.
func (p *Pagination[T]) HasMorePages() bool {
	return p.Page < p.LastPage
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, 1, DefaultPageName, make([]*T, 0)}
}

// NewPagination builds a container for the given request and result.
func NewPagination[T any](req *PageRequest, total int, items []*T) *Pagination[T] {
	p := NewDefaultPagination[T](req.GetPage(), req.GetPageSize())
	p.PageName = req.GetPageName()
	p.Total = total
	if items != nil {
		p.Items = items
	}
	if total > 0 {
		p.LastPage = (total + p.PageSize - 1) / p.PageSize
	}
	return p
}
